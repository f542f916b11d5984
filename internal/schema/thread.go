package schema

import (
	"fmt"
	"strings"
)

// ThreadID identifies one scheduling conversation: the chat surface it lives on
// plus the thread anchor within it. It is the primary key for both the session
// registry and the run store.
type ThreadID struct {
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts"`
}

func (t ThreadID) Key() string {
	return t.ChannelID + ":" + t.ThreadTS
}

func (t ThreadID) IsZero() bool {
	return t.ChannelID == "" && t.ThreadTS == ""
}

func (t ThreadID) String() string {
	return t.Key()
}

// ParseThreadKey splits a "channel:anchor" key back into a ThreadID. Thread
// anchors may themselves contain ':' so only the first separator counts.
func ParseThreadKey(key string) (ThreadID, error) {
	channel, anchor, ok := strings.Cut(key, ":")
	if !ok || channel == "" || anchor == "" {
		return ThreadID{}, fmt.Errorf("invalid thread key %q", key)
	}
	return ThreadID{ChannelID: channel, ThreadTS: anchor}, nil
}
