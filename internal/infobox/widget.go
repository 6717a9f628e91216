package infobox

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var anchorSel = cascadia.MustCompile("a[href]")

// Widget is a rendered infobox. Root is a detached div.infobox node that the
// host inserts in place of the source block.
type Widget struct {
	Root  *html.Node
	Title string
}

// HTML serializes the widget.
func (w *Widget) HTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, w.Root); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Links lists every anchor of the widget in document order.
func (w *Widget) Links() []ResolvedLink {
	nodes := cascadia.QueryAll(w.Root, anchorSel)
	out := make([]ResolvedLink, 0, len(nodes))
	for _, n := range nodes {
		link := ResolvedLink{Kind: LinkExternal, Label: textContent(n)}
		for _, a := range n.Attr {
			switch a.Key {
			case "href":
				link.Target = a.Val
			case "class":
				classes := strings.Fields(a.Val)
				if hasClass(classes, ClassUnresolved) {
					link.Kind = LinkUnresolved
				} else if hasClass(classes, ClassInternalLink) {
					link.Kind = LinkInternal
				}
			}
		}
		out = append(out, link)
	}
	return out
}

func hasClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
