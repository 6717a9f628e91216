// Package infobox renders TOML or JSON infobox blocks into a tree of HTML
// display nodes, resolving [[wikilinks]] against the vault.
package infobox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/buger/jsonparser"
)

// ErrParse is wrapped by every decode failure of an infobox source.
var ErrParse = errors.New("infobox: parse")

// Reserved keys.
const (
	KeyImage = "image"
	KeyTitle = "title"
)

// Skip reasons reported for fields that produce no row.
const (
	SkipNoLink          = "no-link"
	SkipUnsupportedType = "unsupported-type"
	SkipNonStringItem   = "non-string-list-item"
)

// Document is the normalized form of an infobox source.
type Document struct {
	Image    string
	HasImage bool
	Title    string
	HasTitle bool
	// Fields holds every non-reserved key in document order, including the
	// ones whose value shape is not rendered.
	Fields []Field
}

// Field is a non-reserved key and its normalized value.
type Field struct {
	Key   string
	Value Value
}

// Value is one of Text, List, Link or Skipped.
type Value interface {
	isValue()
}

// Text is a string field; it is scanned for inline links when rendered.
type Text struct {
	Text string
}

// List is an array of strings; items are rendered verbatim.
type List struct {
	Items []string
}

// Link is a one-level object exposing a link reference and its display text.
type Link struct {
	Link       string
	Content    string
	HasContent bool
}

// Skipped is any shape the renderer leaves out.
type Skipped struct {
	Reason string
}

func (Text) isValue()    {}
func (List) isValue()    {}
func (Link) isValue()    {}
func (Skipped) isValue() {}

// ParseDocument decodes source (JSON when it starts with '{', TOML
// otherwise) and normalizes it.
func ParseDocument(source string) (*Document, error) {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "{") {
		return parseJSON([]byte(trimmed))
	}
	return parseTOML(source)
}

func parseTOML(source string) (*Document, error) {
	var raw map[string]any
	md, err := toml.Decode(source, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: toml: %v", ErrParse, err)
	}

	var order []string
	seen := make(map[string]struct{}, len(raw))
	for _, k := range md.Keys() {
		if len(k) == 0 {
			continue
		}
		top := k[0]
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		order = append(order, top)
	}

	doc := &Document{}
	for _, key := range order {
		v, ok := raw[key]
		if !ok {
			continue
		}
		doc.add(key, normalizeAny(v), v)
	}
	return doc, nil
}

// normalizeAny maps a decoded TOML value onto the closed Value set.
func normalizeAny(v any) Value {
	switch t := v.(type) {
	case string:
		return Text{Text: t}
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return Skipped{Reason: SkipNonStringItem}
			}
			items = append(items, s)
		}
		return List{Items: items}
	case []string:
		return List{Items: append([]string(nil), t...)}
	case map[string]any:
		link, ok := t["link"].(string)
		if !ok {
			return Skipped{Reason: SkipNoLink}
		}
		out := Link{Link: link}
		if c, ok := t["content"]; ok {
			s, isString := c.(string)
			if !isString {
				return Skipped{Reason: SkipUnsupportedType}
			}
			out.Content, out.HasContent = s, true
		}
		return out
	default:
		return Skipped{Reason: SkipUnsupportedType}
	}
}

func parseJSON(data []byte) (*Document, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: json: malformed document", ErrParse)
	}

	doc := &Document{}
	index := make(map[string]int)
	// ObjectEach hands over keys already unescaped.
	err := jsonparser.ObjectEach(data, func(k, v []byte, dt jsonparser.ValueType, _ int) error {
		key := string(k)
		val, str, err := normalizeJSON(v, dt)
		if err != nil {
			return err
		}
		if i, dup := index[key]; dup {
			doc.replace(i, key, val, str)
			return nil
		}
		index[key] = doc.add(key, val, str)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrParse, err)
	}
	return doc, nil
}

// normalizeJSON returns the Value for a raw JSON member and, for strings, the
// decoded string (needed for reserved keys).
func normalizeJSON(v []byte, dt jsonparser.ValueType) (Value, any, error) {
	switch dt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return nil, nil, err
		}
		return Text{Text: s}, s, nil
	case jsonparser.Array:
		items := []string{}
		allStrings := true
		var itemErr error
		_, err := jsonparser.ArrayEach(v, func(item []byte, idt jsonparser.ValueType, _ int, _ error) {
			if idt != jsonparser.String {
				allStrings = false
				return
			}
			s, err := jsonparser.ParseString(item)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, s)
		})
		if err != nil {
			return nil, nil, err
		}
		if itemErr != nil {
			return nil, nil, itemErr
		}
		if !allStrings {
			return Skipped{Reason: SkipNonStringItem}, nil, nil
		}
		return List{Items: items}, nil, nil
	case jsonparser.Object:
		link, err := jsonparser.GetString(v, "link")
		if err != nil {
			return Skipped{Reason: SkipNoLink}, nil, nil
		}
		out := Link{Link: link}
		cv, ct, _, err := jsonparser.Get(v, "content")
		switch {
		case errors.Is(err, jsonparser.KeyPathNotFoundError):
		case err != nil:
			return nil, nil, err
		case ct != jsonparser.String:
			return Skipped{Reason: SkipUnsupportedType}, nil, nil
		default:
			s, err := jsonparser.ParseString(cv)
			if err != nil {
				return nil, nil, err
			}
			out.Content, out.HasContent = s, true
		}
		return out, nil, nil
	default:
		return Skipped{Reason: SkipUnsupportedType}, nil, nil
	}
}

// add records key and returns its field index, or -1 for reserved keys.
// raw is the decoded value, used to read reserved keys.
func (d *Document) add(key string, v Value, raw any) int {
	switch key {
	case KeyImage:
		d.Image, d.HasImage = reservedString(raw)
		return -1
	case KeyTitle:
		d.Title, d.HasTitle = reservedString(raw)
		return -1
	}
	d.Fields = append(d.Fields, Field{Key: key, Value: v})
	return len(d.Fields) - 1
}

func (d *Document) replace(i int, key string, v Value, raw any) {
	if i < 0 {
		d.add(key, v, raw)
		return
	}
	d.Fields[i].Value = v
}

func reservedString(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

// Keys returns the non-reserved keys in document order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Key
	}
	return out
}

// String renders a compact debug form, e.g. `title="X" fields=[a:text b:list]`.
func (d *Document) String() string {
	var b bytes.Buffer
	if d.HasTitle {
		fmt.Fprintf(&b, "title=%q ", d.Title)
	}
	if d.HasImage {
		fmt.Fprintf(&b, "image=%q ", d.Image)
	}
	b.WriteString("fields=[")
	for i, f := range d.Fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Key)
		b.WriteByte(':')
		switch v := f.Value.(type) {
		case Text:
			b.WriteString("text")
		case List:
			b.WriteString("list")
		case Link:
			b.WriteString("link")
		case Skipped:
			b.WriteString("skipped(" + v.Reason + ")")
		}
	}
	b.WriteByte(']')
	return b.String()
}

// PlainText flattens the document for full-text indexing: the title, then
// one "Label: value" line per rendered field. Link tokens are reduced to
// their labels and skipped fields are left out.
func (d *Document) PlainText() string {
	var b strings.Builder
	if d.HasTitle && d.Title != "" {
		b.WriteString(d.Title)
		b.WriteByte('\n')
	}
	for _, f := range d.Fields {
		var val string
		switch v := f.Value.(type) {
		case Text:
			val = linkLabels(v.Text)
		case List:
			val = strings.Join(v.Items, ", ")
		case Link:
			if v.HasContent {
				val = linkLabels(v.Content)
			} else if ref, ok := ParseLinkRef(v.Link); ok {
				val = ref.Label
			} else {
				val = v.Link
			}
		default:
			continue
		}
		b.WriteString(HumanizeKey(f.Key))
		b.WriteString(": ")
		b.WriteString(val)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func linkLabels(text string) string {
	return inlineLinkRe.ReplaceAllStringFunc(text, func(tok string) string {
		if ref, ok := ParseLinkRef(tok); ok {
			return ref.Label
		}
		return tok
	})
}
