// Package render turns page sub-trees into HTML. One Engine type is
// configured per view: the diplomatic transcription and the normalized
// edited text differ only in their handler table, style table and the set
// of tags whose children the handler consumes itself.
package render

import (
	"fmt"
	"maps"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"

	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/pages"
	"github.com/tei-tools/tei2search/internal/tei"
)

// Handler converts one source element. Returning nil drops the element
// and its subtree. A returned element receives the rendered source
// children unless the tag is in the variant's skip set; a returned text
// node ends the descent.
type Handler func(c *Context, n *xmlquery.Node) *html.Node

// Variant is the configuration an Engine is composed from.
type Variant struct {
	Name     string
	Handlers map[string]Handler
	Styles   map[string]string
	// SkipChildren lists tags whose handlers render their own children.
	SkipChildren []string
	// Suppressed lists tags rendered as nothing. They are also left out
	// of annotation previews.
	Suppressed []string
}

// Engine renders pages for one variant. It holds no per-render state and
// is safe for concurrent use.
type Engine struct {
	name       string
	handlers   map[string]Handler
	styles     map[string]string
	skip       map[string]bool
	suppressed map[string]bool
}

// New composes an engine from the shared handlers and v. Handlers in v
// override shared ones with the same tag.
func New(v Variant) *Engine {
	e := &Engine{
		name:       v.Name,
		handlers:   commonHandlers(),
		styles:     maps.Clone(v.Styles),
		skip:       make(map[string]bool),
		suppressed: make(map[string]bool),
	}
	maps.Copy(e.handlers, v.Handlers)
	for _, tag := range v.SkipChildren {
		e.skip[tag] = true
	}
	for _, tag := range append([]string{"handShift"}, v.Suppressed...) {
		e.suppressed[tag] = true
		e.handlers[tag] = suppress
	}
	return e
}

// Name identifies the variant, e.g. "transcription".
func (e *Engine) Name() string { return e.name }

// Options carries per-document inputs to a render pass.
type Options struct {
	IDs      annotation.IDGenerator
	Graphics map[string]string
}

// Page is the rendered form of one source page.
type Page struct {
	Index       int
	Root        *html.Node
	HTML        string
	Text        string
	Annotations annotation.Snapshot
}

// Render converts one page. Every call starts from an empty collector, so
// annotations never leak between pages or documents.
func (e *Engine) Render(page *pages.Page, opts Options) (*Page, error) {
	c := &Context{
		engine:   e,
		notes:    annotation.NewCollector(opts.IDs),
		graphics: opts.Graphics,
	}
	root := &html.Node{Type: html.DocumentNode}
	for n := page.Root.FirstChild; n != nil; n = n.NextSibling {
		if out := c.transform(n); out != nil {
			root.AppendChild(out)
		}
	}
	markup, err := renderChildren(root)
	if err != nil {
		return nil, fmt.Errorf("render %s page %d: %w", e.name, page.Index, err)
	}
	return &Page{
		Index:       page.Index,
		Root:        root,
		HTML:        markup,
		Text:        plainText(root),
		Annotations: c.notes.Snapshot(),
	}, nil
}

// Context is threaded through every handler call of one render pass.
type Context struct {
	engine   *Engine
	notes    *annotation.Collector
	graphics map[string]string

	// detached contexts render nested content (note bodies) that is kept
	// out of the output tree, so they must not allocate annotation ids.
	detached bool

	lastSeg   *xmlquery.Node
	lastSegID string
}

// Annotating reports whether handlers may emit annotations.
func (c *Context) Annotating() bool { return !c.detached }

// Collector exposes the page's annotation collector.
func (c *Context) Collector() *annotation.Collector { return c.notes }

func (c *Context) transform(n *xmlquery.Node) *html.Node {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return newText(n.Data)
	case xmlquery.ElementNode:
	default:
		return nil
	}

	h, ok := c.engine.handlers[n.Data]
	if !ok {
		h = passThrough
	}
	out := h(c, n)
	if out == nil || out.Type != html.ElementNode || c.engine.skip[n.Data] {
		return out
	}
	c.transformChildren(n, out)
	return out
}

// transformChildren renders the children of src into dst. Text inside a
// forename gets a trailing space so that it does not run into the surname.
func (c *Context) transformChildren(src *xmlquery.Node, dst *html.Node) {
	forename := tei.IsElement(src, "name") && tei.Attr(src, "type") == "forename"
	for child := src.FirstChild; child != nil; child = child.NextSibling {
		out := c.transform(child)
		if out == nil {
			continue
		}
		if forename && out.Type == html.TextNode {
			out.Data += " "
		}
		dst.AppendChild(out)
	}
}

// renderDetached renders the children of n into a standalone fragment
// without emitting annotations.
func (c *Context) renderDetached(n *xmlquery.Node) string {
	nested := &Context{engine: c.engine, notes: c.notes, graphics: c.graphics, detached: true}
	frag := &html.Node{Type: html.DocumentNode}
	nested.transformChildren(n, frag)
	markup, err := renderChildren(frag)
	if err != nil {
		return ""
	}
	return markup
}

// preview returns the text of n as it reads in this variant: suppressed
// elements are left out and whitespace is normalized. It has no side
// effects and is used for annotation texts.
func (c *Context) preview(n *xmlquery.Node) string {
	var b []byte
	var walk func(*xmlquery.Node)
	walk = func(x *xmlquery.Node) {
		for ch := x.FirstChild; ch != nil; ch = ch.NextSibling {
			switch {
			case tei.IsText(ch):
				b = append(b, ch.Data...)
			case ch.Type == xmlquery.ElementNode:
				if c.engine.suppressed[ch.Data] || isCourseBus(ch) {
					continue
				}
				if ch.Data == "lb" {
					b = append(b, ' ')
					continue
				}
				walk(ch)
			}
		}
	}
	walk(n)
	return tei.NormalizeSpace(string(b))
}

// style maps a rendition value such as "#italic" or "simple:italic"
// through the variant's style table.
func (c *Context) style(rendition string) string {
	code := rendition
	if i := strings.LastIndexAny(code, ":#"); i >= 0 {
		code = code[i+1:]
	}
	return c.engine.styles[code]
}

func suppress(*Context, *xmlquery.Node) *html.Node { return nil }

func passThrough(*Context, *xmlquery.Node) *html.Node { return newElement("span", "") }

func isCourseBus(n *xmlquery.Node) bool {
	return tei.IsElement(n, "add") && tei.Attr(n, "type") == "courseBus"
}
