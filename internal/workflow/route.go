package workflow

import (
	"strings"

	"github.com/flitsinc/schedd/internal/capability"
)

// CancelKeyword aborts the run when it appears anywhere in a reply,
// case-insensitively. The check runs before intent classification and
// overrides it.
const CancelKeyword = "end"

// ContainsCancelKeyword reports whether the raw reply asks to abort.
func ContainsCancelKeyword(replyText string) bool {
	return strings.Contains(strings.ToLower(replyText), CancelKeyword)
}

// Decision is the continuation chosen after interpreting a reply.
type Decision string

const (
	DecideSchedule  Decision = "schedule"
	DecideReAnalyze Decision = "re_analyze"
	DecideClarify   Decision = "clarify"
	DecideCancel    Decision = "cancel"
)

// Route decides the continuation that follows reply interpretation. Priority
// order is strict: the cancel keyword wins over everything, participant
// additions win over the classified intent, and only then does the intent
// itself pick the continuation.
func Route(replyText string, reply capability.InterpretedReply) Decision {
	if ContainsCancelKeyword(replyText) {
		return DecideCancel
	}
	if len(reply.ParticipantsToAdd) > 0 {
		return DecideReAnalyze
	}
	switch reply.Intent {
	case capability.IntentConfirm:
		return DecideSchedule
	case capability.IntentRejectWithNewInfo:
		return DecideReAnalyze
	default:
		return DecideClarify
	}
}
