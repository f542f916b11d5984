package workflow

import (
	"fmt"
	"strings"

	"github.com/flitsinc/schedd/internal/capability"
)

// RenderOptions builds the message presenting candidates to the human. Zero,
// one, and many candidates read differently: zero invites relaxed
// constraints, one asks for an explicit yes/no, many asks for an ordinal.
func RenderOptions(p capability.Proposal) string {
	switch len(p.Slots) {
	case 0:
		return "I couldn't find any suitable time slots.\n\n" +
			"Feel free to adjust your timeframe or constraints."
	case 1:
		return "I found a suitable time slot:\n\n" +
			fmt.Sprintf("1) %s\n\n", p.Slots[0].Label()) +
			"Please reply with just 'yes' to confirm or 'no' to decline. " +
			"You can also add participants (e.g., 'add @user') or constraints (e.g., 'afternoon only')."
	default:
		var b strings.Builder
		b.WriteString("Here are a few options I found:\n\n")
		for i, s := range p.Slots {
			fmt.Fprintf(&b, "%d) %s\n", i+1, s.Label())
		}
		b.WriteString("\nPlease reply in this thread to confirm (e.g., 'Option 1 is good') " +
			"or suggest changes (e.g., 'afternoon only', '30 mins', 'add @user to the meeting').")
		return b.String()
	}
}

// CandidateSummary compacts the presented candidates for the reply
// interpreter.
func CandidateSummary(p capability.Proposal) string {
	switch len(p.Slots) {
	case 0:
		return "No candidate slots."
	case 1:
		return "Single candidate: " + p.Slots[0].Label()
	default:
		lines := make([]string, 0, len(p.Slots)+1)
		lines = append(lines, "Candidates:")
		for i, s := range p.Slots {
			lines = append(lines, fmt.Sprintf("%d) %s", i+1, s.Label()))
		}
		return strings.Join(lines, "\n")
	}
}

const clarificationMessage = "I'm sorry, I didn't quite understand your response. " +
	"Could you please confirm one of the options, provide a new constraint " +
	"(e.g., 'I need an afternoon slot'), or reply with 'END' to cancel?"

const cancelledMessage = "Okay, I'm cancelling this scheduling request. " +
	"Feel free to start a new one anytime."

const contextLostMessage = "I'm sorry, I lost the context for this scheduling request. " +
	"Please start a new one."
