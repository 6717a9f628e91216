package markdown

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/starford/infobox/internal/infobox"
	"github.com/starford/infobox/internal/linkpath"
)

const note = "# Star Wars\n\n" +
	"```infobox\n" +
	"title = \"Star Wars\"\n" +
	"director = \"[[George Lucas]]\"\n" +
	"```\n\n" +
	"After the box.\n\n" +
	"```go\nfmt.Println(\"untouched\")\n```\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func convert(t *testing.T, src string, opts ...ExtensionOption) string {
	t.Helper()
	opts = append(opts, WithLogger(quietLogger()))
	c := NewConverter(NewExtension(infobox.NewRenderer(), opts...))
	lookup := linkpath.NewSet([]string{"films/Star Wars.md", "people/George Lucas.md"})

	var buf bytes.Buffer
	require.NoError(t, c.Convert(&buf, []byte(src), "films/Star Wars.md", lookup))
	return buf.String()
}

func TestConvert_ReplacesInfoboxBlock(t *testing.T) {
	out := convert(t, note)

	doc, err := html.Parse(strings.NewReader(out))
	require.NoError(t, err)

	boxes := cascadia.QueryAll(doc, cascadia.MustCompile("div.infobox"))
	require.Len(t, boxes, 1)

	links := cascadia.QueryAll(boxes[0], cascadia.MustCompile("a.internal-link"))
	require.Len(t, links, 1)
	assert.Contains(t, out, `href="people/George Lucas.md"`)

	assert.NotContains(t, out, "language-infobox")
	assert.Contains(t, out, `<code class="language-go">`)
	assert.Contains(t, out, "<p>After the box.</p>")
}

func TestConvert_BrokenBlockStaysVisible(t *testing.T) {
	src := "```infobox\ntitle = \n```\n"
	out := convert(t, src)
	assert.Contains(t, out, `<code class="language-infobox">`)
	assert.Contains(t, out, "title = ")
	assert.NotContains(t, out, `class="infobox"`)
}

func TestConvert_MultipleBlocksAndNesting(t *testing.T) {
	src := "```infobox\na = \"1\"\n```\n\n> ```infobox\n> b = \"2\"\n> ```\n"
	out := convert(t, src)
	assert.Equal(t, 2, strings.Count(out, `<div class="infobox">`))
	assert.Contains(t, out, "<blockquote>")
}

func TestConvert_CustomLanguage(t *testing.T) {
	src := "```card\nname = \"x\"\n```\n\n```infobox\nname = \"y\"\n```\n"
	out := convert(t, src, WithLanguage("card"))
	assert.Equal(t, 1, strings.Count(out, `<div class="infobox">`))
	assert.Contains(t, out, `<code class="language-infobox">`)
}

func TestConvert_FallbackTitleUsesNotePath(t *testing.T) {
	out := convert(t, "```infobox\ngenre = \"Space opera\"\n```\n")
	assert.Contains(t, out, "<h1>Star Wars</h1>")
}
