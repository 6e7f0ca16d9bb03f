package fields

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/tei-tools/tei2search/internal/tei"
)

var (
	entityExpr = tei.MustCompile("//tei:text//*[@ref]")
	noteExpr   = tei.MustCompile("//tei:body//tei:note")
)

// Entity is an authority-linked name mention.
type Entity struct {
	GND  string `json:"gnd"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Note is a footnote of the body, numbered in document order.
type Note struct {
	ID   string `json:"id"`
	Text string `json:"note"`
}

// Entities returns the distinct authority-linked names of the text in
// order of first mention. Mentions without a readable name are skipped.
func (e *Extractor) Entities(doc *tei.Document) []Entity {
	seen := make(map[string]bool)
	var out []Entity
	for _, n := range doc.Find(entityExpr) {
		if n.Data != "name" && n.Data != "rs" {
			continue
		}
		ref := strings.TrimSpace(tei.Attr(n, "ref"))
		if !strings.HasPrefix(ref, e.cfg.EntityPrefix) {
			continue
		}
		gnd := strings.TrimPrefix(ref, e.cfg.EntityPrefix)
		name := entityName(n)
		if gnd == "" || name == "" || seen[gnd] {
			continue
		}
		seen[gnd] = true
		out = append(out, Entity{GND: gnd, Name: name, Type: tei.Attr(n, "type")})
	}
	return out
}

// entityName joins the name parts with single spaces so that forename and
// surname elements do not run together. Stray separators are dropped.
func entityName(n *xmlquery.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		var t string
		switch {
		case tei.IsText(c):
			t = tei.NormalizeSpace(c.Data)
		case c.Type == xmlquery.ElementNode:
			t = tei.Text(c)
		}
		if t != "" && t != "," {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Notes returns the non-empty footnotes of the body with ids
// "<id>_note_<n>", counting from 1.
func (e *Extractor) Notes(doc *tei.Document, id string) []Note {
	if id == "" {
		return nil
	}
	var out []Note
	for i, n := range doc.Find(noteExpr) {
		t := tei.Text(n)
		if t == "" {
			continue
		}
		out = append(out, Note{ID: id + "_note_" + strconv.Itoa(i+1), Text: t})
	}
	return out
}
