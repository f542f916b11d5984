package schema

import "testing"

func TestThreadKeyRoundTrip(t *testing.T) {
	id := ThreadID{ChannelID: "C042", ThreadTS: "1726000000.000100"}
	back, err := ParseThreadKey(id.Key())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if back != id {
		t.Fatalf("expected %+v, got %+v", id, back)
	}
}

func TestParseThreadKeyAnchorMayContainColon(t *testing.T) {
	id, err := ParseThreadKey("C1:a:b")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.ChannelID != "C1" || id.ThreadTS != "a:b" {
		t.Fatalf("unexpected split: %+v", id)
	}
}

func TestParseThreadKeyInvalid(t *testing.T) {
	for _, key := range []string{"", "C1", "C1:", ":1.0"} {
		if _, err := ParseThreadKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestThreadIsZero(t *testing.T) {
	if !(ThreadID{}).IsZero() {
		t.Fatalf("empty thread should be zero")
	}
	if (ThreadID{ChannelID: "C1"}).IsZero() {
		t.Fatalf("partial thread is not zero")
	}
}
