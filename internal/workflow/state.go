package workflow

import (
	"strings"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
	"github.com/flitsinc/schedd/internal/schema"
)

// Stage names a node in the scheduling state machine.
type Stage string

const (
	StagePreprocess     Stage = "preprocess"
	StageExtractIntent  Stage = "extract_intent"
	StageProposeSlots   Stage = "propose_slots"
	StagePresentOptions Stage = "present_options"
	StageAwaitReply     Stage = "await_reply"
	StageInterpretReply Stage = "interpret_reply"
	StageSchedule       Stage = "schedule"
	StageCancel         Stage = "cancel"
)

// Terminal reports whether the stage ends the run.
func (s Stage) Terminal() bool {
	return s == StageSchedule || s == StageCancel
}

// RunState is the full accumulated context of one in-progress workflow
// instance. It is owned by exactly one engine run, mutated only by the stage
// currently executing, and must JSON round-trip exactly: the engine suspends
// by checkpointing this struct and resumes by loading it back.
type RunState struct {
	Thread    schema.ThreadID `json:"thread"`
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`

	RequestText  string            `json:"request_text"`
	Requester    capability.User   `json:"requester"`
	Participants []capability.User `json:"participants,omitempty"`

	// Reference clock captured at preprocess; all timeframe reasoning is
	// anchored to it so a resumed run stays self-consistent.
	ReferenceTime time.Time `json:"reference_time"`
	Timezone      string    `json:"timezone,omitempty"`

	Intent   capability.MeetingIntent `json:"intent"`
	Proposal capability.Proposal      `json:"proposal"`

	// ReplyText is the opaque value bound at resume: the human's raw reply.
	ReplyText string                      `json:"reply_text,omitempty"`
	LastReply capability.InterpretedReply `json:"last_reply"`

	// SessionConstraints are volunteered mid-conversation and live only as
	// long as the run; every proposal round folds them in alongside the
	// original request constraints.
	SessionConstraints []string `json:"session_constraints,omitempty"`

	Stage Stage `json:"stage"`
	Round int   `json:"round"`
}

// MergedConstraints returns the original request constraints plus every
// session-scoped constraint accumulated so far, in the order they appeared.
func (st *RunState) MergedConstraints() []string {
	out := make([]string, 0, len(st.Intent.Constraints)+len(st.SessionConstraints))
	out = append(out, st.Intent.Constraints...)
	out = append(out, st.SessionConstraints...)
	return out
}

// AddSessionConstraint records a newly volunteered constraint, skipping
// duplicates.
func (st *RunState) AddSessionConstraint(c string) {
	c = strings.TrimSpace(c)
	if c == "" {
		return
	}
	for _, existing := range st.SessionConstraints {
		if strings.EqualFold(existing, c) {
			return
		}
	}
	st.SessionConstraints = append(st.SessionConstraints, c)
}

// AddParticipants grows the participant set with newly named identities.
// Identities may be user IDs, mentions, or bare emails; they are deduplicated
// against existing IDs and emails.
func (st *RunState) AddParticipants(identities []string) {
	for _, raw := range identities {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if st.hasParticipant(id) {
			continue
		}
		u := capability.User{ID: id}
		if strings.Contains(id, "@") && !strings.Contains(id, "<") {
			u.Email = id
		}
		st.Participants = append(st.Participants, u)
	}
}

func (st *RunState) hasParticipant(identity string) bool {
	for _, p := range st.Participants {
		if strings.EqualFold(p.ID, identity) || (p.Email != "" && strings.EqualFold(p.Email, identity)) {
			return true
		}
	}
	return strings.EqualFold(st.Requester.ID, identity) ||
		(st.Requester.Email != "" && strings.EqualFold(st.Requester.Email, identity))
}

// Attendees collects the requester plus all participants as commit
// identities, preferring emails where known.
func (st *RunState) Attendees() []string {
	var out []string
	add := func(u capability.User) {
		id := u.Email
		if id == "" {
			id = u.ID
		}
		if id == "" {
			return
		}
		for _, existing := range out {
			if strings.EqualFold(existing, id) {
				return
			}
		}
		out = append(out, id)
	}
	add(st.Requester)
	for _, p := range st.Participants {
		add(p)
	}
	return out
}
