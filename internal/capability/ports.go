// Package capability defines the narrow contracts the workflow engine calls
// out through. Each port is a pure request/response interface; the engine
// never inspects a provider's internals, and malformed provider output is
// degraded to a safe default rather than crashing the run.
package capability

import (
	"context"

	"github.com/flitsinc/schedd/internal/schema"
)

// IntentExtractor turns a raw scheduling request into a MeetingIntent.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, req ExtractRequest) (MeetingIntent, error)
}

// SlotProposer computes candidate meeting slots for the merged constraint
// set. A conforming proposer never returns a slot violating a supplied hard
// constraint.
type SlotProposer interface {
	ProposeSlots(ctx context.Context, req ProposalRequest) (Proposal, error)
}

// ReplyInterpreter classifies a human's free-text reply against the
// candidates that were presented.
type ReplyInterpreter interface {
	InterpretReply(ctx context.Context, req ReplyRequest) (InterpretedReply, error)
}

// MeetingScheduler performs the external calendar write. The engine never
// retries a failed commit; the failure is surfaced to the human instead.
type MeetingScheduler interface {
	Commit(ctx context.Context, req MeetingRequest) (string, error)
}

// Notifier delivers a message into the conversation thread. Fire-and-forget:
// failures are logged by callers, never aborting the run.
type Notifier interface {
	Send(ctx context.Context, thread schema.ThreadID, text string) error
}

// PreferenceStore holds durable, per-participant preference strings. Entries
// are scoped so unrelated participants never see each other's preferences.
type PreferenceStore interface {
	Search(ctx context.Context, participant, query string) ([]string, error)
	Upsert(ctx context.Context, participant, content string) error
}
