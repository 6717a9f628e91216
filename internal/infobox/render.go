package infobox

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/infobox/internal/metrics"
)

// Class markers emitted on the widget.
const (
	ClassInfobox      = "infobox"
	ClassContent      = "infobox-content"
	ClassRow          = "subdiv"
	ClassLabel        = "title"
	ClassBody         = "content"
	ClassList         = "listdiv"
	ClassInternalLink = "internal-link"
	ClassUnresolved   = "is-unresolved"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for debug output about skipped fields.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Renderer) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// Renderer turns infobox sources into widgets. It holds no per-render state
// and is safe for concurrent use.
type Renderer struct {
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render parses source and builds the widget. Parse failures are returned
// as is (wrapping ErrParse); nothing is rendered for a malformed document.
func (r *Renderer) Render(source string, rc Context) (*Widget, error) {
	start := time.Now()
	defer func() { r.recorder.ObserveRenderDuration(time.Since(start)) }()

	doc, err := ParseDocument(source)
	if err != nil {
		r.recorder.IncRenderOutcome(metrics.OutcomeParseError)
		return nil, err
	}
	w := r.RenderDocument(doc, rc)
	r.recorder.IncRenderOutcome(metrics.OutcomeSuccess)
	return w, nil
}

// RenderDocument builds the widget for an already parsed document.
func (r *Renderer) RenderDocument(doc *Document, rc Context) *Widget {
	root := element(atom.Div, ClassInfobox)
	w := &Widget{Root: root}

	if doc.HasImage {
		img := element(atom.Img)
		img.Attr = append(img.Attr, html.Attribute{Key: "src", Val: doc.Image})
		root.AppendChild(img)
	}

	switch {
	case doc.HasTitle:
		w.Title = doc.Title
	case len(doc.Fields) > 0:
		w.Title = FileStem(rc.DocumentPath)
	}
	if doc.HasTitle || w.Title != "" {
		h := element(atom.H1)
		h.AppendChild(text(w.Title))
		root.AppendChild(h)
	}

	if len(doc.Fields) == 0 {
		return w
	}

	content := element(atom.Div, ClassContent)
	root.AppendChild(content)
	for _, f := range doc.Fields {
		if row := r.renderField(f, rc); row != nil {
			content.AppendChild(row)
		}
	}
	return w
}

func (r *Renderer) renderField(f Field, rc Context) *html.Node {
	row := element(atom.Div, ClassRow)
	label := element(atom.P, ClassLabel)
	label.AppendChild(text(HumanizeKey(f.Key)))

	switch v := f.Value.(type) {
	case Text:
		row.AppendChild(label)
		body := element(atom.P, ClassBody)
		for _, n := range r.Tokenize(v.Text, rc) {
			body.AppendChild(n)
		}
		row.AppendChild(body)

	case List:
		row.AppendChild(label)
		list := element(atom.Div, ClassList)
		for _, item := range v.Items {
			p := element(atom.P)
			p.AppendChild(text(item))
			list.AppendChild(p)
		}
		row.AppendChild(list)

	case Link:
		row.AppendChild(label)
		link := r.Resolve(v.Link, rc)
		display := link.Label
		if v.HasContent {
			display = v.Content
		}
		row.AppendChild(anchor(link, display, ClassBody))

	case Skipped:
		r.recorder.IncSkippedField(v.Reason)
		r.logger.Debug("infobox: field skipped",
			slog.String("path", rc.DocumentPath),
			slog.String("key", f.Key),
			slog.String("reason", v.Reason))
		return nil
	}
	return row
}

// Tokenize turns prose into text nodes interleaved with anchors for every
// [[link]] token. Words are re-joined with single spaces.
func (r *Renderer) Tokenize(s string, rc Context) []*html.Node {
	var out []*html.Node
	var pending []string

	for _, frag := range SplitInline(s) {
		if !frag.IsLink {
			pending = append(pending, frag.Text)
			continue
		}
		if len(pending) > 0 {
			out = append(out, text(strings.Join(pending, " ")+" "))
			pending = pending[:0]
		}
		link := r.Resolve(frag.Text, rc)
		out = append(out, anchor(link, link.Label), text(" "))
	}
	if len(pending) > 0 {
		out = append(out, text(strings.Join(pending, " ")))
	}
	return out
}

// HumanizeKey turns a snake_case key into a label: underscores become
// spaces and the first letter of every word is upper-cased. The rest of each
// word keeps its casing.
func HumanizeKey(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(first)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FileStem returns the last path segment of p without its extension:
// "folder/my-note.md" → "my-note".
func FileStem(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		p = p[:i]
	}
	return p
}

func element(a atom.Atom, classes ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if len(classes) > 0 {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: strings.Join(classes, " ")})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func anchor(link ResolvedLink, display string, classes ...string) *html.Node {
	switch link.Kind {
	case LinkInternal:
		classes = append(classes, ClassInternalLink)
	case LinkUnresolved:
		classes = append(classes, ClassInternalLink, ClassUnresolved)
	}
	a := element(atom.A, classes...)
	a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: link.Target})
	if link.Kind != LinkExternal {
		a.Attr = append(a.Attr, html.Attribute{Key: "data-href", Val: link.Target})
	}
	a.AppendChild(text(display))
	return a
}
