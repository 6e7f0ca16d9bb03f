// Package pages partitions a TEI body into page sub-trees at <pb/>
// markers.
package pages

import (
	"errors"

	"github.com/antchfx/xmlquery"

	"github.com/tei-tools/tei2search/internal/tei"
)

// ErrInvalidBody is returned when Split is given something other than an
// element node.
var ErrInvalidBody = errors.New("page split: body must be an element node")

const marker = "pb"

// Page is one physical page. Root is a detached document node holding
// clones of the source nodes; for every page but the first, the page break
// marker is Root's first child, followed by the replicated ancestor chain.
type Page struct {
	Index int
	Root  *xmlquery.Node
}

// Marker returns the page break element that opens the page, or nil for
// the leading page.
func (p *Page) Marker() *xmlquery.Node {
	if c := p.Root.FirstChild; tei.IsElement(c, marker) {
		return c
	}
	return nil
}

type splitter struct {
	body  *xmlquery.Node
	pages []*Page
}

// Split clones body into one page per marker plus the leading page. With N
// markers it returns N+1 pages when N > 0, otherwise a single page.
func Split(body *xmlquery.Node) ([]*Page, error) {
	if body == nil || body.Type != xmlquery.ElementNode {
		return nil, ErrInvalidBody
	}
	s := &splitter{body: body}
	first := s.newPage()
	s.visit(body, first.Root)
	return s.pages, nil
}

func (s *splitter) newPage() *Page {
	p := &Page{Index: len(s.pages), Root: &xmlquery.Node{Type: xmlquery.DocumentNode}}
	s.pages = append(s.pages, p)
	return p
}

// visit clones n under target and returns the node that n's next sibling
// must be appended to. That node differs from target when a page break
// occurred somewhere inside n.
func (s *splitter) visit(n, target *xmlquery.Node) *xmlquery.Node {
	if n.Type == xmlquery.CommentNode {
		return target
	}
	c := clone(n)
	appendChild(target, c)
	if n.FirstChild == nil {
		return target
	}

	cur := c
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if tei.IsElement(child, marker) {
			cur = s.breakAt(child)
			continue
		}
		cur = s.visit(child, cur)
	}
	return cur.Parent
}

// breakAt starts a new page for the marker pb and returns the clone of
// pb's parent inside that page.
func (s *splitter) breakAt(pb *xmlquery.Node) *xmlquery.Node {
	var chain []*xmlquery.Node
	for a := pb.Parent; a != nil; a = a.Parent {
		chain = append(chain, a)
		if a == s.body {
			break
		}
	}

	page := s.newPage()
	at := page.Root
	for i := len(chain) - 1; i >= 0; i-- {
		c := clone(chain[i])
		appendChild(at, c)
		at = c
	}
	prependChild(page.Root, clone(pb))
	return at
}

func clone(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]xmlquery.Attr(nil), n.Attr...)
	}
	return c
}

func appendChild(parent, n *xmlquery.Node) {
	n.Parent = parent
	n.NextSibling = nil
	n.PrevSibling = parent.LastChild
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = n
	} else {
		parent.FirstChild = n
	}
	parent.LastChild = n
}

func prependChild(parent, n *xmlquery.Node) {
	n.Parent = parent
	n.PrevSibling = nil
	n.NextSibling = parent.FirstChild
	if parent.FirstChild != nil {
		parent.FirstChild.PrevSibling = n
	} else {
		parent.LastChild = n
	}
	parent.FirstChild = n
}
