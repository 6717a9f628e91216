package infobox

import (
	"strings"

	"github.com/starford/infobox/internal/linkpath"
)

// LinkKind classifies a resolved link.
type LinkKind string

const (
	LinkExternal   LinkKind = "external"
	LinkInternal   LinkKind = "internal"
	LinkUnresolved LinkKind = "unresolved"
)

// ResolvedLink is the navigable form of a link reference.
type ResolvedLink struct {
	Kind   LinkKind `json:"kind"`
	Target string   `json:"target"`
	Label  string   `json:"label"`
}

// Context carries the per-render inputs supplied by the host.
type Context struct {
	// DocumentPath is the vault path of the note containing the block.
	DocumentPath string
	// Collection resolves internal links. It is read-only for the duration
	// of a render; nil resolves nothing.
	Collection linkpath.Lookup
}

// Resolve classifies raw as an internal or external link and builds its
// target. Internal targets that match no note come back as LinkUnresolved
// with the identifier as written.
func (r *Renderer) Resolve(raw string, rc Context) ResolvedLink {
	link := resolve(raw, rc)
	r.recorder.IncLinkResolution(string(link.Kind))
	return link
}

func resolve(raw string, rc Context) ResolvedLink {
	ref, ok := ParseLinkRef(raw)
	if !ok {
		return ResolvedLink{
			Kind:   LinkExternal,
			Target: raw,
			Label:  stripBrackets(raw),
		}
	}

	file, subpath := linkpath.SplitSubpath(ref.Target)
	link := ResolvedLink{Kind: LinkUnresolved, Target: ref.Target, Label: ref.Label}
	if rc.Collection != nil {
		if p, found := rc.Collection.ResolveLinkpath(file, rc.DocumentPath); found {
			link.Kind, link.Target = LinkInternal, p+subpath
		}
	}
	if file == "" {
		// [[]] and [[#Heading]] point at the note itself.
		if link.Kind == LinkUnresolved {
			link.Target = rc.DocumentPath + subpath
		}
		if link.Label == "" {
			link.Label = FileStem(rc.DocumentPath)
		}
	}
	return link
}

var bracketReplacer = strings.NewReplacer("[", "", "]", "")

func stripBrackets(s string) string {
	return bracketReplacer.Replace(s)
}
