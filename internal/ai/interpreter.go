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

const interpretSystemPrompt = `You classify a human's reply to proposed meeting slots.
Respond with only a JSON object:
{"intent": "CONFIRM"|"REJECT_WITH_NEW_INFO"|"AMBIGUOUS", "confirmed_option": int, "new_information": string, "participants_to_add": [string]}
confirmed_option is the 1-based option number the human accepted, or 0.
new_information is any new constraint or preference the human volunteered.
participants_to_add lists user mentions or emails the human asked to include.
Use AMBIGUOUS when the reply does not clearly confirm or provide new information.`

// Interpreter classifies a human reply against the presented candidates.
type Interpreter struct {
	Client *Client
}

func (i *Interpreter) InterpretReply(ctx context.Context, req capability.ReplyRequest) (capability.InterpretedReply, error) {
	if i.Client == nil {
		return heuristicReply(req.ReplyText), nil
	}

	user := req.CandidateSummary + "\n\nReply:\n" + req.ReplyText
	content, err := i.Client.Complete(ctx, interpretSystemPrompt, user)
	if err != nil {
		return capability.InterpretedReply{}, fmt.Errorf("interpret reply: %w", err)
	}

	var reply capability.InterpretedReply
	if err := decodeStrictJSON(content, &reply); err != nil {
		log.Printf("ai: reply output not decodable, using keyword pass: %v", err)
		return heuristicReply(req.ReplyText), nil
	}
	return reply, nil
}

var (
	optionRe     = regexp.MustCompile(`(?i)\b(?:option|number|#)\s*(\d+)\b`)
	bareNumberRe = regexp.MustCompile(`^\s*(\d+)\s*$`)
	replyUserRe  = regexp.MustCompile(`<@([A-Za-z0-9._-]+)>|\b[\w.+-]+@[\w-]+\.[\w.]+\b`)
	addRe        = regexp.MustCompile(`(?i)\b(add|invite|include)\b`)
)

var affirmatives = []string{"yes", "yep", "yeah", "ok", "okay", "sure", "confirm", "sounds good", "works for me", "that works", "perfect", "great"}

var rejections = []string{"no", "nope", "can't", "cannot", "doesn't work", "don't work", "won't work", "prefer", "instead", "rather", "earlier", "later", "too early", "too late", "morning", "afternoon", "evening", "different"}

// heuristicReply is a keyword classifier over the raw reply. It is
// deliberately conservative: anything it cannot place is AMBIGUOUS, which the
// workflow answers with a clarification rather than a guess.
func heuristicReply(text string) capability.InterpretedReply {
	lower := strings.ToLower(strings.TrimSpace(text))
	var reply capability.InterpretedReply

	if addRe.MatchString(lower) {
		for _, m := range replyUserRe.FindAllStringSubmatch(text, -1) {
			id := m[1]
			if id == "" {
				id = m[0] // bare email
			}
			reply.ParticipantsToAdd = append(reply.ParticipantsToAdd, id)
		}
	}

	if m := optionRe.FindStringSubmatch(lower); m != nil {
		reply.ConfirmedOption, _ = strconv.Atoi(m[1])
		reply.Intent = capability.IntentConfirm
		return reply
	}
	if m := bareNumberRe.FindStringSubmatch(lower); m != nil {
		reply.ConfirmedOption, _ = strconv.Atoi(m[1])
		reply.Intent = capability.IntentConfirm
		return reply
	}

	for _, w := range affirmatives {
		if strings.Contains(lower, w) {
			reply.Intent = capability.IntentConfirm
			return reply
		}
	}
	for _, w := range rejections {
		if strings.Contains(lower, w) {
			reply.Intent = capability.IntentRejectWithNewInfo
			reply.NewInformation = strings.TrimSpace(text)
			return reply
		}
	}
	if len(reply.ParticipantsToAdd) > 0 {
		reply.Intent = capability.IntentRejectWithNewInfo
		return reply
	}

	reply.Intent = capability.IntentAmbiguous
	return reply
}
