package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
)

func testSlot(hour int) capability.CandidateSlot {
	start := time.Date(2026, 9, 7, hour, 0, 0, 0, time.UTC)
	return capability.CandidateSlot{Start: start, End: start.Add(time.Hour), Timezone: "UTC"}
}

func TestRenderOptionsZero(t *testing.T) {
	msg := RenderOptions(capability.Proposal{})
	if !strings.Contains(msg, "couldn't find any suitable time slots") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestRenderOptionsSingleAsksYesNo(t *testing.T) {
	msg := RenderOptions(capability.Proposal{Slots: []capability.CandidateSlot{testSlot(10)}})
	if !strings.Contains(msg, "1) 2026-09-07 10:00-11:00 UTC") {
		t.Fatalf("expected labeled slot, got %q", msg)
	}
	if !strings.Contains(msg, "'yes'") {
		t.Fatalf("expected yes/no instructions, got %q", msg)
	}
}

func TestRenderOptionsManyNumbered(t *testing.T) {
	msg := RenderOptions(capability.Proposal{Slots: []capability.CandidateSlot{testSlot(9), testSlot(14)}})
	if !strings.Contains(msg, "1) ") || !strings.Contains(msg, "2) ") {
		t.Fatalf("expected numbered list, got %q", msg)
	}
}

func TestCandidateSummary(t *testing.T) {
	if got := CandidateSummary(capability.Proposal{}); got != "No candidate slots." {
		t.Fatalf("unexpected empty summary: %q", got)
	}
	one := CandidateSummary(capability.Proposal{Slots: []capability.CandidateSlot{testSlot(10)}})
	if !strings.HasPrefix(one, "Single candidate:") {
		t.Fatalf("unexpected single summary: %q", one)
	}
	many := CandidateSummary(capability.Proposal{Slots: []capability.CandidateSlot{testSlot(9), testSlot(14)}})
	if !strings.Contains(many, "2) ") {
		t.Fatalf("unexpected multi summary: %q", many)
	}
}
