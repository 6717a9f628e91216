package infobox

import (
	"regexp"
	"strings"
)

// Link reference grammar:
//
//	linkref := "[[" target [ "|" label ] "]]"
//	target  := *( any char except "[", "]", "|" )
//	label   := *( any char except "[", "]" )
//
// There is no escaping and no nesting. Target and label are trimmed. An empty
// target refers to the note containing the link.
var (
	linkRefRe = regexp.MustCompile(`^\[\[([^\[\]|]*)(?:\|([^\[\]]*))?\]\]$`)
	// inlineLinkRe finds link-shaped tokens inside prose, non-greedy.
	inlineLinkRe = regexp.MustCompile(`\[\[[^\[\]]*?\]\]`)
)

// LinkRef is a parsed [[target|label]] token.
type LinkRef struct {
	Target string
	Label  string
}

// ParseLinkRef parses raw as a whole link reference. It returns false when
// raw is not one.
func ParseLinkRef(raw string) (LinkRef, bool) {
	m := linkRefRe.FindStringSubmatch(raw)
	if m == nil {
		return LinkRef{}, false
	}
	target := strings.TrimSpace(m[1])
	label := strings.TrimSpace(m[2])
	if label == "" {
		label = target
	}
	return LinkRef{Target: target, Label: label}, true
}

// Fragment is one piece of inline text: a single word or a link token.
type Fragment struct {
	Text   string
	IsLink bool
}

// SplitInline splits text on link tokens and on spaces, dropping empty
// fragments. Link tokens keep their position relative to the words around
// them.
func SplitInline(text string) []Fragment {
	var out []Fragment
	words := func(s string) {
		for _, w := range strings.Split(s, " ") {
			if w != "" {
				out = append(out, Fragment{Text: w})
			}
		}
	}

	last := 0
	for _, loc := range inlineLinkRe.FindAllStringIndex(text, -1) {
		words(text[last:loc[0]])
		out = append(out, Fragment{Text: text[loc[0]:loc[1]], IsLink: true})
		last = loc[1]
	}
	words(text[last:])
	return out
}
