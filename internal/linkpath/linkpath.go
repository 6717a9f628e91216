// Package linkpath resolves wikilink targets against a snapshot of vault note paths.
package linkpath

import (
	"path"
	"sort"
	"strings"
)

// Lookup resolves a link identifier written inside the note at from to the
// canonical vault path of a note. The second result is false when nothing
// matches.
type Lookup interface {
	ResolveLinkpath(linkpath, from string) (string, bool)
}

// Set is an immutable snapshot of note paths (slash separated, relative to
// the vault root). It is safe for concurrent use.
type Set struct {
	exact  map[string]struct{}
	sorted []string // by depth, then lexical
}

// NewSet builds a snapshot from paths. Duplicates are ignored.
func NewSet(paths []string) *Set {
	s := &Set{exact: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		p = normalize(p)
		if p == "" {
			continue
		}
		if _, dup := s.exact[p]; dup {
			continue
		}
		s.exact[p] = struct{}{}
		s.sorted = append(s.sorted, p)
	}
	sort.Slice(s.sorted, func(i, j int) bool {
		di, dj := strings.Count(s.sorted[i], "/"), strings.Count(s.sorted[j], "/")
		if di != dj {
			return di < dj
		}
		return s.sorted[i] < s.sorted[j]
	})
	return s
}

// Len returns the number of notes in the snapshot.
func (s *Set) Len() int { return len(s.sorted) }

// Contains reports whether p is a known note path.
func (s *Set) Contains(p string) bool {
	_, ok := s.exact[normalize(p)]
	return ok
}

// ResolveLinkpath implements Lookup.
//
// Matching is case-sensitive. An empty linkpath points at from itself. Paths
// starting with "./" or "../" are relative to the directory of from. Otherwise
// an exact path match wins, then a match with ".md" appended, then any note
// whose extension-less path ends with the linkpath; among those a note in the
// same directory as from is preferred, else the shallowest one.
func (s *Set) ResolveLinkpath(linkpath, from string) (string, bool) {
	from = normalize(from)
	lp := strings.TrimSpace(strings.ReplaceAll(linkpath, "\\", "/"))
	if lp == "" {
		if s.Contains(from) {
			return from, true
		}
		return "", false
	}

	if strings.HasPrefix(lp, "./") || strings.HasPrefix(lp, "../") {
		lp = path.Join(path.Dir(from), lp)
		if strings.HasPrefix(lp, "../") || lp == ".." {
			return "", false
		}
	}
	lp = strings.TrimPrefix(lp, "/")

	if s.Contains(lp) {
		return lp, true
	}
	if s.Contains(lp + ".md") {
		return lp + ".md", true
	}

	fromDir := path.Dir(from)
	var first string
	for _, p := range s.sorted {
		stem := strings.TrimSuffix(p, ".md")
		if stem != lp && !strings.HasSuffix(stem, "/"+lp) {
			continue
		}
		if path.Dir(p) == fromDir {
			return p, true
		}
		if first == "" {
			first = p
		}
	}
	if first != "" {
		return first, true
	}
	return "", false
}

// SplitSubpath separates the file part of a link target from a trailing
// heading or block reference ("Note#Heading" → "Note", "#Heading").
func SplitSubpath(linkpath string) (file, subpath string) {
	if i := strings.IndexByte(linkpath, '#'); i >= 0 {
		return linkpath[:i], linkpath[i:]
	}
	return linkpath, ""
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}
