// Package markdown renders vault notes to HTML with goldmark, replacing
// fenced infobox blocks with rendered infobox widgets.
package markdown

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"

	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/linkpath"
)

// DefaultLanguage is the fenced code block info string that marks an infobox.
const DefaultLanguage = "infobox"

// KindInfobox is the AST node kind that replaces a rendered infobox block.
var KindInfobox = ast.NewNodeKind("Infobox")

// Infobox is a block node holding a rendered widget.
type Infobox struct {
	ast.BaseBlock
	Widget *infobox.Widget
}

// Kind implements ast.Node.
func (n *Infobox) Kind() ast.NodeKind { return KindInfobox }

// Dump implements ast.Node.
func (n *Infobox) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Title": n.Widget.Title}, nil)
}

var renderContextKey = parser.NewContextKey()

// WithRenderContext attaches the per-note render context to a goldmark
// parser context.
func WithRenderContext(pc parser.Context, rc infobox.Context) parser.Context {
	pc.Set(renderContextKey, rc)
	return pc
}

func renderContext(pc parser.Context) infobox.Context {
	if v, ok := pc.Get(renderContextKey).(infobox.Context); ok {
		return v
	}
	return infobox.Context{}
}

// ExtensionOption configures an Extension.
type ExtensionOption func(*Extension)

// WithLanguage changes the info string that marks infobox blocks.
func WithLanguage(lang string) ExtensionOption {
	return func(e *Extension) {
		if lang != "" {
			e.language = []byte(lang)
		}
	}
}

// WithLogger sets the logger used to report blocks that failed to parse.
func WithLogger(l *slog.Logger) ExtensionOption {
	return func(e *Extension) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extension is a goldmark.Extender for infobox blocks.
type Extension struct {
	renderer *infobox.Renderer
	language []byte
	logger   *slog.Logger
}

// NewExtension creates an Extension that renders blocks with r.
func NewExtension(r *infobox.Renderer, opts ...ExtensionOption) *Extension {
	e := &Extension{
		renderer: r,
		language: []byte(DefaultLanguage),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extend implements goldmark.Extender.
func (e *Extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&transformer{ext: e}, 100),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&nodeRenderer{}, 100),
	))
}

type transformer struct {
	ext *Extension
}

// Transform replaces every infobox code block that parses with an Infobox
// node. Blocks that fail to parse stay as code blocks so the source remains
// visible.
func (t *transformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	rc := renderContext(pc)

	var blocks []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fb, ok := n.(*ast.FencedCodeBlock); ok && bytes.Equal(fb.Language(source), t.ext.language) {
			blocks = append(blocks, fb)
		}
		return ast.WalkContinue, nil
	})

	for _, fb := range blocks {
		w, err := t.ext.renderer.Render(blockSource(fb, source), rc)
		if err != nil {
			t.ext.logger.Warn("markdown: infobox left unrendered",
				slog.String("path", rc.DocumentPath),
				slog.String("error", err.Error()))
			continue
		}
		node := &Infobox{Widget: w}
		fb.Parent().ReplaceChild(fb.Parent(), fb, node)
	}
}

// blockSource returns the raw text of a fenced code block.
func blockSource(fb *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := fb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

type nodeRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindInfobox, r.renderInfobox)
}

func (r *nodeRenderer) renderInfobox(w util.BufWriter, _ []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	box := n.(*Infobox)
	if err := html.Render(w, box.Widget.Root); err != nil {
		return ast.WalkStop, err
	}
	_ = w.WriteByte('\n')
	return ast.WalkSkipChildren, nil
}

// Converter renders whole notes.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter builds a goldmark pipeline with the infobox extension.
func NewConverter(ext *Extension) *Converter {
	return &Converter{md: goldmark.New(goldmark.WithExtensions(ext))}
}

// Convert writes the HTML of source, resolving infobox links with lookup
// relative to docPath.
func (c *Converter) Convert(w io.Writer, source []byte, docPath string, lookup linkpath.Lookup) error {
	pc := WithRenderContext(parser.NewContext(), infobox.Context{
		DocumentPath: docPath,
		Collection:   lookup,
	})
	return c.md.Convert(source, w, parser.WithContext(pc))
}
