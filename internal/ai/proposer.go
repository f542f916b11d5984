package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
)

const proposeSystemPrompt = `You propose meeting time slots.
Given the intent, constraints, and current time, respond with only a JSON object:
{"slots": [{"start": "RFC3339", "end": "RFC3339"}], "window_start": "RFC3339", "window_end": "RFC3339"}
Propose at most 3 slots, on working days between 09:00 and 18:00 local time,
honoring every constraint. Propose fewer (or zero) slots rather than one that
violates a constraint.`

// Proposer computes candidate slots. It folds each participant's stored
// preferences into the constraint set before proposing, so a participant who
// once said "mornings only" keeps getting mornings without repeating it.
type Proposer struct {
	Client *Client
	Prefs  capability.PreferenceStore
}

func (p *Proposer) ProposeSlots(ctx context.Context, req capability.ProposalRequest) (capability.Proposal, error) {
	constraints := append([]string{}, req.Constraints...)
	constraints = append(constraints, p.participantPreferences(ctx, req)...)

	if p.Client == nil {
		return heuristicProposal(req, constraints), nil
	}

	user := fmt.Sprintf(
		"Current time: %s\nTimezone: %s\nTitle: %s\nDuration minutes: %d\nTimeframe: %s\nConstraints:\n- %s",
		req.Now.Format(time.RFC3339), req.Timezone, req.Intent.Title,
		req.Intent.DurationMinutes, req.Intent.TimeframeQuery,
		strings.Join(constraints, "\n- "))
	content, err := p.Client.Complete(ctx, proposeSystemPrompt, user)
	if err != nil {
		return capability.Proposal{}, fmt.Errorf("propose slots: %w", err)
	}

	var raw struct {
		Slots []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"slots"`
		WindowStart time.Time `json:"window_start"`
		WindowEnd   time.Time `json:"window_end"`
	}
	if err := decodeStrictJSON(content, &raw); err != nil {
		log.Printf("ai: proposal output not decodable, using calendar walk: %v", err)
		return heuristicProposal(req, constraints), nil
	}

	out := capability.Proposal{
		WindowStart:           raw.WindowStart,
		WindowEnd:             raw.WindowEnd,
		DurationMinutes:       req.Intent.DurationMinutes,
		ConsideredConstraints: constraints,
	}
	for _, s := range raw.Slots {
		out.Slots = append(out.Slots, capability.CandidateSlot{
			Start: s.Start, End: s.End, Timezone: req.Timezone,
		})
	}
	return out, nil
}

func (p *Proposer) participantPreferences(ctx context.Context, req capability.ProposalRequest) []string {
	if p.Prefs == nil {
		return nil
	}
	var out []string
	users := append([]capability.User{req.Requester}, req.Participants...)
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		prefs, err := p.Prefs.Search(ctx, u.ID, "")
		if err != nil {
			log.Printf("ai: preference lookup for %s failed: %v", u.ID, err)
			continue
		}
		out = append(out, prefs...)
	}
	return out
}

// heuristicProposal walks the resolved window day by day and places one slot
// per working day at an hour compatible with the constraints.
func heuristicProposal(req capability.ProposalRequest, constraints []string) capability.Proposal {
	loc := time.UTC
	if req.Timezone != "" {
		if l, err := time.LoadLocation(req.Timezone); err == nil {
			loc = l
		}
	}
	now := req.Now.In(loc)
	windowStart, windowEnd := resolveWindow(req.Intent.TimeframeQuery, now)

	duration := time.Duration(req.Intent.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = time.Hour
	}
	startHour := preferredHour(constraints)

	proposal := capability.Proposal{
		WindowStart:           windowStart,
		WindowEnd:             windowEnd,
		DurationMinutes:       int(duration / time.Minute),
		ConsideredConstraints: constraints,
	}
	for day := windowStart; day.Before(windowEnd) && len(proposal.Slots) < 3; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
		if !start.After(now) {
			continue
		}
		proposal.Slots = append(proposal.Slots, capability.CandidateSlot{
			Start:    start,
			End:      start.Add(duration),
			Timezone: loc.String(),
		})
	}
	return proposal
}

func resolveWindow(timeframe string, now time.Time) (time.Time, time.Time) {
	lower := strings.ToLower(timeframe)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case strings.Contains(lower, "today"):
		return today, today.AddDate(0, 0, 1)
	case strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2)
	case strings.Contains(lower, "next week"):
		daysUntilMonday := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		monday := today.AddDate(0, 0, daysUntilMonday)
		return monday, monday.AddDate(0, 0, 5)
	case strings.Contains(lower, "this week"):
		daysLeft := 7 - int(now.Weekday())
		return today, today.AddDate(0, 0, daysLeft)
	default:
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, 8)
	}
}

func preferredHour(constraints []string) int {
	for _, c := range constraints {
		lower := strings.ToLower(c)
		switch {
		case strings.Contains(lower, "morning"):
			return 9
		case strings.Contains(lower, "afternoon"):
			return 14
		case strings.Contains(lower, "evening"):
			return 17
		}
	}
	return 10
}
