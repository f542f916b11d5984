package ai

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/flitsinc/schedd/internal/capability"
)

const extractSystemPrompt = `You extract structured meeting intent from a scheduling request.
Respond with only a JSON object, no prose, with exactly these keys:
{"title": string, "duration_minutes": int, "timeframe_query": string, "constraints": [string]}
Default duration_minutes to 60 when the request does not state one.
timeframe_query is the request's own words about when ("next week", "tomorrow afternoon").
constraints are hard requirements ("mornings only", "not on Friday").`

// Extractor turns a raw request into a MeetingIntent. With no client it runs
// a deterministic keyword pass; with a client, model output that cannot be
// decoded degrades to the same pass.
type Extractor struct {
	Client *Client
}

func (e *Extractor) ExtractIntent(ctx context.Context, req capability.ExtractRequest) (capability.MeetingIntent, error) {
	if e.Client == nil {
		return heuristicIntent(req.Text), nil
	}

	user := req.Text
	if req.ChatContext != "" {
		user = "Conversation context:\n" + req.ChatContext + "\n\nRequest:\n" + req.Text
	}
	content, err := e.Client.Complete(ctx, extractSystemPrompt, user)
	if err != nil {
		return capability.MeetingIntent{}, fmt.Errorf("extract intent: %w", err)
	}

	var intent capability.MeetingIntent
	if err := decodeStrictJSON(content, &intent); err != nil {
		log.Printf("ai: intent output not decodable, using keyword pass: %v", err)
		return heuristicIntent(req.Text), nil
	}
	if intent.DurationMinutes <= 0 {
		intent.DurationMinutes = 60
	}
	if intent.Title == "" {
		intent.Title = "Meeting"
	}
	if intent.TimeframeQuery == "" {
		intent.TimeframeQuery = req.Text
	}
	return intent, nil
}

var durationRe = regexp.MustCompile(`(?i)(\d+)\s*(?:-|\s)?\s*(min|mins|minute|minutes|h|hr|hrs|hour|hours)\b`)

var titleWords = []string{"sync", "standup", "1:1", "one-on-one", "review", "retro", "planning", "interview", "demo", "kickoff"}

func heuristicIntent(text string) capability.MeetingIntent {
	intent := capability.MeetingIntent{
		Title:           "Meeting",
		DurationMinutes: 60,
		TimeframeQuery:  text,
	}
	lower := strings.ToLower(text)

	if m := durationRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "h") {
			n *= 60
		}
		if n > 0 {
			intent.DurationMinutes = n
		}
	}

	for _, w := range titleWords {
		if strings.Contains(lower, w) {
			intent.Title = strings.ToUpper(w[:1]) + w[1:]
			break
		}
	}

	for _, c := range []string{"morning", "afternoon", "evening"} {
		if strings.Contains(lower, c) {
			intent.Constraints = append(intent.Constraints, c+" preferred")
		}
	}
	return intent
}
