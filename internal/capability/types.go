package capability

import (
	"fmt"
	"time"
)

// User identifies a meeting participant on the chat surface.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// CandidateSlot is a concrete proposed meeting window, immutable once
// produced. Humans refer to it by its 1-based position in the presented list.
type CandidateSlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Timezone string    `json:"timezone"`
}

// Label renders the slot the way it is presented to the human,
// e.g. "2025-10-01 09:00-10:00 Asia/Manila".
func (s CandidateSlot) Label() string {
	loc := time.UTC
	if s.Timezone != "" {
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
	}
	start := s.Start.In(loc)
	end := s.End.In(loc)
	return fmt.Sprintf("%s %s-%s %s",
		start.Format("2006-01-02"), start.Format("15:04"), end.Format("15:04"), loc.String())
}

// MeetingIntent is the structured form of the human's original request.
type MeetingIntent struct {
	Title           string   `json:"title"`
	DurationMinutes int      `json:"duration_minutes"`
	TimeframeQuery  string   `json:"timeframe_query"`
	Constraints     []string `json:"constraints,omitempty"`

	// History fields are populated only when the request explicitly asked
	// for the last N messages with a numeric N.
	HistoryText  string   `json:"history_text,omitempty"`
	HistoryUsers []string `json:"history_users,omitempty"`
}

// ExtractRequest carries the raw request into the intent extractor.
type ExtractRequest struct {
	Text        string
	ChatContext string
}

// ProposalRequest carries everything the slot proposer may consider. The
// Constraints slice is the full merged set for the run, original request
// constraints plus every session-scoped constraint volunteered so far.
type ProposalRequest struct {
	Intent       MeetingIntent
	Constraints  []string
	Requester    User
	Participants []User
	Now          time.Time
	Timezone     string
}

// Proposal is the slot proposer's answer: 1-3 ordered candidates plus the
// resolved evaluation window.
type Proposal struct {
	Slots                 []CandidateSlot `json:"slots"`
	WindowStart           time.Time       `json:"window_start"`
	WindowEnd             time.Time       `json:"window_end"`
	DurationMinutes       int             `json:"duration_minutes"`
	ConsideredConstraints []string        `json:"considered_constraints,omitempty"`
}

// Intent classifies a human reply.
type Intent string

const (
	IntentConfirm           Intent = "CONFIRM"
	IntentRejectWithNewInfo Intent = "REJECT_WITH_NEW_INFO"
	IntentAmbiguous         Intent = "AMBIGUOUS"
)

func ValidIntent(i Intent) bool {
	switch i {
	case IntentConfirm, IntentRejectWithNewInfo, IntentAmbiguous:
		return true
	default:
		return false
	}
}

// InterpretedReply is the structured classification of a human's free-text
// response to presented options.
type InterpretedReply struct {
	Intent            Intent   `json:"intent"`
	ConfirmedOption   int      `json:"confirmed_option,omitempty"` // 1-based, 0 = unset
	NewInformation    string   `json:"new_information,omitempty"`
	ParticipantsToAdd []string `json:"participants_to_add,omitempty"`
}

// EffectiveIntent is the intent routing must honor: any participant addition
// forces re-evaluation of availability regardless of confirmation language.
func (r InterpretedReply) EffectiveIntent() Intent {
	if len(r.ParticipantsToAdd) > 0 {
		return IntentRejectWithNewInfo
	}
	return r.Intent
}

// ReplyRequest carries the presented candidates and the raw reply into the
// reply interpreter.
type ReplyRequest struct {
	CandidateSummary string
	ReplyText        string
}

// MeetingRequest is the final commit payload for the calendar side effect.
type MeetingRequest struct {
	Thread      string    `json:"thread,omitempty"`
	Organizer   User      `json:"organizer"`
	Title       string    `json:"title"`
	Attendees   []string  `json:"attendees"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
}
