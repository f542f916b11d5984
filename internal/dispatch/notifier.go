package dispatch

import (
	"context"

	"github.com/flitsinc/schedd/internal/eventbus"
	"github.com/flitsinc/schedd/internal/schema"
)

// BusNotifier delivers outbound messages by appending them to the outbound
// event stream, where a chat-platform adapter (or a websocket client) picks
// them up. The write is durable, so a message survives an adapter outage.
type BusNotifier struct {
	Bus    *eventbus.Bus
	Sender string
}

func (n *BusNotifier) Send(ctx context.Context, thread schema.ThreadID, text string) error {
	sender := n.Sender
	if sender == "" {
		sender = "schedd"
	}
	_, err := n.Bus.Push(ctx, eventbus.EventInput{
		Stream:    schema.StreamOutbound,
		ScopeType: "conversation",
		ScopeID:   thread.Key(),
		Subject:   "Reply in " + thread.Key(),
		Body:      text,
		Metadata: map[string]any{
			schema.MetaThread: thread.Key(),
			schema.MetaSender: sender,
		},
	})
	return err
}
