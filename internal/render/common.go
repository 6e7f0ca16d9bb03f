package render

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"

	"github.com/tei-tools/tei2search/internal/tei"
)

const enSpace = "\u2002"

// commonHandlers are shared by every variant.
func commonHandlers() map[string]Handler {
	div := element("div")
	return map[string]Handler{
		"address":    element("div", "address"),
		"addrLine":   div,
		"body":       div,
		"closer":     div,
		"dateline":   div,
		"div":        handleDiv,
		"head":       div,
		"label":      handleLabel,
		"opener":     div,
		"pb":         handlePageBreak,
		"postscript": div,
		"salute":     element("p", "salute"),
		"space":      handleSpace,
	}
}

// element returns a handler emitting tag with an optional class.
func element(tag string, class ...string) Handler {
	cls := strings.Join(class, " ")
	return func(*Context, *xmlquery.Node) *html.Node {
		return newElement(tag, cls)
	}
}

func handleDiv(_ *Context, n *xmlquery.Node) *html.Node {
	return newElement("section", tei.Attr(n, "type"))
}

func handleLabel(_ *Context, n *xmlquery.Node) *html.Node {
	parent := n.Parent
	switch {
	case tei.IsElement(parent, "item"):
		return newText(tei.Text(n))
	case tei.IsElement(parent, "div") && tei.Attr(parent, "type") == "lecture":
		return newElement("div", "lecture-label")
	}
	return newElement("div", "")
}

// handlePageBreak shows the page number, linked to the facsimile when the
// marker points at a known graphic.
func handlePageBreak(c *Context, n *xmlquery.Node) *html.Node {
	num := tei.Attr(n, "n")
	if num == "" {
		return newText("")
	}
	div := newElement("div", "")
	facs := strings.TrimPrefix(tei.Attr(n, "facs"), "#")
	if url, ok := c.graphics[facs]; ok && facs != "" && url != "" {
		div.AppendChild(newAnchor("/"+strings.TrimSuffix(url, ".jpg"), num))
		return div
	}
	div.AppendChild(newText(num))
	return div
}

func handleSpace(_ *Context, n *xmlquery.Node) *html.Node {
	dim := tei.Attr(n, "dim")
	if dim == "" {
		dim = tei.Attr(n, "dimension")
	}
	switch dim {
	case "vertical":
		return newElement("div", "space vertical")
	case "horizontal":
		span := newElement("span", "space horizontal")
		q, err := strconv.Atoi(tei.Attr(n, "quantity"))
		if err != nil || q < 1 {
			q = 1
		}
		span.AppendChild(newText(strings.Repeat(enSpace, q)))
		return span
	}
	return nil
}

// gloss renders the editorial remark attached to additions, deletions and
// underlinings. verb is the abbreviated editorial verb, e.g. "erg.".
func gloss(n *xmlquery.Node, verb string) *html.Node {
	text, ok := glossText(n, verb)
	if !ok {
		return nil
	}
	span := newElement("span", "italic")
	span.AppendChild(newText(text))
	return span
}

func glossText(n *xmlquery.Node, verb string) (string, bool) {
	if len(tei.DataAttrs(n)) == 0 {
		return " " + upperFirst(verb), true
	}
	hand := tei.Attr(n, "hand")
	if hand == "" {
		return "", false
	}
	verb = strings.ToLower(verb)
	if _, scribe, found := strings.Cut(hand, "scrb"); found {
		parts := strings.Split(strings.TrimLeft(scribe, "_"), "_")
		if len(parts) != 2 {
			return "", false
		}
		return verb + " Schrhd." + parts[0] + " " + parts[1], true
	}
	return verb + " " + scribeName(hand), true
}

// scribeName turns a hand reference like "#Carl_Friedrich" into
// "Carl Friedrich".
func scribeName(ref string) string {
	return strings.ReplaceAll(strings.Trim(ref, "#"), "_", " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
