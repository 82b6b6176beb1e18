package irc

import (
	"strings"

	"github.com/yourusername/jolt/internal/trigger"
)

const mentionTrim = ",:;.!?'\""

// ExtractMentions returns the ASCII lower-cased nicks a message addresses.
// A mention is a whitespace-separated word starting with @ ("@alice,"),
// or a leading "alice:" / "alice," addressing the first word to a nick.
func ExtractMentions(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var mentions []string
	add := func(nick string) {
		nick = trigger.FoldASCII(strings.TrimRight(nick, mentionTrim))
		if nick == "" {
			return
		}
		if _, ok := seen[nick]; ok {
			return
		}
		seen[nick] = struct{}{}
		mentions = append(mentions, nick)
	}

	for i, field := range fields {
		if strings.HasPrefix(field, "@") {
			add(strings.TrimPrefix(field, "@"))
			continue
		}
		// "alice: hi" is the usual IRC way to address someone
		if i == 0 && len(field) > 1 && strings.ContainsAny(field[len(field)-1:], ":,") {
			add(field)
		}
	}

	return mentions
}
