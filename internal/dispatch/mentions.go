package dispatch

import (
	"regexp"
	"strings"
)

var mentionRe = regexp.MustCompile(`<@([A-Za-z0-9._-]+)>`)

// MentionedUsers extracts every user mentioned in the text, in order of first
// appearance, excluding the bot itself and the message sender.
func MentionedUsers(text, botID, senderID string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if id == botID || id == senderID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// StripBotMention removes a leading mention of the bot so the request text
// starts with the actual ask.
func StripBotMention(text, botID string) string {
	text = strings.TrimSpace(text)
	if botID == "" {
		return text
	}
	prefix := "<@" + botID + ">"
	if strings.HasPrefix(text, prefix) {
		text = strings.TrimPrefix(text, prefix)
		text = strings.TrimLeft(text, " \t:,")
	}
	return strings.TrimSpace(text)
}
