// Package literature turns bibliography files into literature search
// records.
package literature

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/tei"
)

var biblExpr = tei.MustCompile("//tei:text//tei:body//tei:listBibl//tei:bibl")

// Fields collected from repeated children.
const (
	URI              = "uri"
	LiteratureAuthor = "literature_author"
	Publisher        = "publisher"
	PubPlace         = "pub_place"
	Edition          = "edition"
)

// Extractor maps bibliography entries to records. Elements maps a child
// signature such as "title_main", "idno_isbn", "biblScope_volume" or
// "date" to the output field name; children without a mapping are
// dropped.
type Extractor struct {
	elements map[string]string
}

func New(elements map[string]string) *Extractor {
	return &Extractor{elements: elements}
}

// Documents returns one record per bibl entry of doc. Entries without an
// attribute to derive the id from are skipped.
func (e *Extractor) Documents(doc *tei.Document) []search.Document {
	var out []search.Document
	for _, bibl := range doc.Find(biblExpr) {
		if d, ok := e.document(bibl); ok {
			out = append(out, d)
		}
	}
	return out
}

// ID derives the record id from the first attribute of a bibl entry:
// "Meyer_1900" becomes "Meyer 1900".
func ID(bibl *xmlquery.Node) string {
	attrs := tei.DataAttrs(bibl)
	if len(attrs) == 0 {
		return ""
	}
	return strings.ReplaceAll(strings.TrimSpace(attrs[0].Value), "_", " ")
}

func (e *Extractor) document(bibl *xmlquery.Node) (search.Document, bool) {
	id := ID(bibl)
	if id == "" {
		return search.Document{}, false
	}
	d := search.NewDocument(id, search.DoctypeLiterature)

	var uri, authors, publishers, places, editions []string
	for c := bibl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "relatedItem":
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if !tei.IsElement(r, "ref") {
					continue
				}
				if ref := firstAttr(r, 0); ref != "" && ref != "_" {
					uri = append(uri, ref)
				}
			}
		case "author":
			authors = append(authors, childTexts(c)...)
		case "publisher":
			publishers = append(publishers, childTexts(c)...)
		case "pubPlace":
			places = append(places, childTexts(c)...)
		case "edition":
			editions = append(editions, childTexts(c)...)
		default:
			if field := e.elements[Signature(c)]; field != "" {
				d.Set(field, tei.Text(c))
			}
		}
	}

	d.SetList(URI, uri)
	d.SetList(LiteratureAuthor, authors)
	d.SetList(Publisher, publishers)
	d.SetList(PubPlace, places)
	d.SetList(Edition, editions)
	return d, true
}

// Signature names a bibl child for the element mapping.
func Signature(n *xmlquery.Node) string {
	switch n.Data {
	case "title":
		name := "title_"
		if a := firstAttr(n, 0); a != "" {
			name += a
		}
		if a := firstAttr(n, 1); a != "" {
			name += "_" + a
		}
		return name
	case "idno":
		return "idno_" + strings.ToLower(firstAttr(n, 0))
	case "biblScope":
		name := "biblScope_" + firstAttr(n, 0)
		if attrs := tei.DataAttrs(n); len(attrs) > 1 && attrs[1].Name.Local == "n" && attrs[1].Value != "" {
			name += "_" + attrs[1].Value
		}
		return name
	}
	return n.Data
}

func firstAttr(n *xmlquery.Node, i int) string {
	attrs := tei.DataAttrs(n)
	if i >= len(attrs) {
		return ""
	}
	return attrs[i].Value
}

// childTexts returns the text of every child of n that has any, so that
// "<author><persName>A</persName><persName>B</persName></author>" yields
// two entries.
func childTexts(n *xmlquery.Node) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode && !tei.IsText(c) {
			continue
		}
		if t := tei.Text(c); t != "" {
			out = append(out, t)
		}
	}
	return out
}
