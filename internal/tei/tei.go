// Package tei loads TEI XML documents and offers namespace-aware XPath
// helpers shared by the page splitter, the field extractor and the
// literature reader.
package tei

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/text/unicode/norm"
)

const (
	// Namespace is the TEI P5 namespace bound to the "tei" prefix in all
	// expressions compiled by this package.
	Namespace = "http://www.tei-c.org/ns/1.0"

	// DefaultEntityPrefix is the scheme prefix of GND authority references
	// in @ref attributes, e.g. "gnd:118540238".
	DefaultEntityPrefix = "gnd:"

	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
)

var namespaces = map[string]string{
	"tei": Namespace,
	"xml": xmlNamespace,
}

// ParseError reports a document that is not well-formed XML.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document is a parsed TEI source tree. It is read-only once parsed.
type Document struct {
	Root   *xmlquery.Node
	Source string
}

// Parse reads a TEI document. Malformed input yields a *ParseError.
func Parse(r io.Reader, source string) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return &Document{Root: root, Source: source}, nil
}

// ParseBytes is Parse for in-memory content.
func ParseBytes(content []byte, source string) (*Document, error) {
	return Parse(bytes.NewReader(content), source)
}

// Body returns the first tei:body element, or nil.
func (d *Document) Body() *xmlquery.Node {
	return d.FindOne(bodyExpr)
}

// Find evaluates a compiled expression against the whole document.
func (d *Document) Find(expr *xpath.Expr) []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(d.Root, expr)
}

// FindOne returns the first match of expr, or nil.
func (d *Document) FindOne(expr *xpath.Expr) *xmlquery.Node {
	return xmlquery.QuerySelector(d.Root, expr)
}

var bodyExpr = MustCompile("//tei:body")

var (
	cacheMu sync.RWMutex
	cache   = map[string]*xpath.Expr{}
)

// Compile compiles expr with the tei and xml prefixes bound. Results are
// cached, so callers may compile ad-hoc expressions on hot paths.
func Compile(expr string) (*xpath.Expr, error) {
	cacheMu.RLock()
	e, ok := cache[expr]
	cacheMu.RUnlock()
	if ok {
		return e, nil
	}
	e, err := xpath.CompileWithNS(expr, namespaces)
	if err != nil {
		return nil, fmt.Errorf("compile xpath %q: %w", expr, err)
	}
	cacheMu.Lock()
	cache[expr] = e
	cacheMu.Unlock()
	return e, nil
}

// MustCompile is Compile for package-level expressions.
func MustCompile(expr string) *xpath.Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// Attr returns the value of the attribute with the given local name,
// ignoring any namespace prefix.
func Attr(n *xmlquery.Node, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether n carries an attribute with the given local name.
func HasAttr(n *xmlquery.Node, local string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return true
		}
	}
	return false
}

// XMLAttr returns an attribute in the XML namespace such as xml:id.
func XMLAttr(n *xmlquery.Node, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == "xml" || a.NamespaceURI == xmlNamespace || a.Name.Space == xmlNamespace {
			return a.Value
		}
	}
	return ""
}

// DataAttrs returns the attributes of n that are not namespace
// declarations, in document order.
func DataAttrs(n *xmlquery.Node) []xmlquery.Attr {
	var out []xmlquery.Attr
	for _, a := range n.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// IsElement reports whether n is an element with the given local name.
func IsElement(n *xmlquery.Node, local string) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.Data == local
}

// IsText reports whether n is a text or CDATA leaf.
func IsText(n *xmlquery.Node) bool {
	return n != nil && (n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode)
}

// IsBlank reports whether n is a text leaf holding only whitespace.
func IsBlank(n *xmlquery.Node) bool {
	return IsText(n) && strings.TrimSpace(n.Data) == ""
}

// PrevSibling skips whitespace-only text and comments.
func PrevSibling(n *xmlquery.Node) *xmlquery.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == xmlquery.CommentNode || IsBlank(s) {
			continue
		}
		return s
	}
	return nil
}

// NextSibling skips whitespace-only text and comments.
func NextSibling(n *xmlquery.Node) *xmlquery.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == xmlquery.CommentNode || IsBlank(s) {
			continue
		}
		return s
	}
	return nil
}

// FirstChild skips whitespace-only text and comments.
func FirstChild(n *xmlquery.Node) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.CommentNode || IsBlank(c) {
			continue
		}
		return c
	}
	return nil
}

// Text returns the whitespace-normalized text content of n.
func Text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return NormalizeSpace(n.InnerText())
}

// NormalizeSpace collapses whitespace runs to a single space, trims the
// result and brings it into Unicode NFC.
func NormalizeSpace(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}
