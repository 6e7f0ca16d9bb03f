package render

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tei-tools/tei2search/internal/tei"
)

func newElement(tag, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if class != "" {
		setAttr(n, "class", class)
	}
	return n
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func newAnchor(href, text string) *html.Node {
	a := newElement("a", "")
	setAttr(a, "href", href)
	setAttr(a, "target", "_blank")
	if text != "" {
		a.AppendChild(newText(text))
	}
	return a
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func addClass(n *html.Node, class string) {
	if class == "" {
		return
	}
	current := getAttr(n, "class")
	for _, c := range strings.Fields(current) {
		if c == class {
			return
		}
	}
	setAttr(n, "class", strings.TrimSpace(current+" "+class))
}

// renderChildren serialises the children of n without n itself.
func renderChildren(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// renderNode serialises n for an annotation value. Render only fails on
// a bytes.Buffer for malformed trees, e.g. a void element with children;
// those fall back to their plain text.
func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return plainText(n)
	}
	return buf.String()
}

var blockTags = map[atom.Atom]bool{
	atom.Br:      true,
	atom.Div:     true,
	atom.Li:      true,
	atom.P:       true,
	atom.Section: true,
	atom.Ul:      true,
}

// plainText returns the normalized text content of an output tree. Block
// boundaries and line breaks read as a space.
func plainText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		block := n.Type == html.ElementNode && blockTags[n.DataAtom]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return tei.NormalizeSpace(b.String())
}
