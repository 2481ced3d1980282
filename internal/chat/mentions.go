package chat

import (
	"regexp"
	"slices"

	"github.com/kidandcat/taskdesk/internal/db"
)

var mentionRe = regexp.MustCompile(`@(\w+)`)

// Mentions returns the distinct @tokens in text, in order of appearance.
func Mentions(text string) []string {
	var tokens []string
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(tokens, m[1]) {
			tokens = append(tokens, m[1])
		}
	}
	return tokens
}

// ResolveRecipients maps the mentions in text to usernames. A token naming
// a user selects that user; otherwise every member of the branch with that
// name is selected. When anything resolved the sender is included too. An
// empty result means the message is public.
func ResolveRecipients(sender, text string, dir db.Directory) []string {
	set := map[string]struct{}{}
	for _, token := range Mentions(text) {
		if _, ok := dir[token]; ok {
			set[token] = struct{}{}
			continue
		}
		for name, u := range dir {
			if u.InBranch(token) {
				set[name] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return []string{}
	}
	set[sender] = struct{}{}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
