package pages

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/tei-tools/tei2search/internal/tei"
)

func parseBody(t *testing.T, body string) *xmlquery.Node {
	t.Helper()
	src := `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>` + body + `</body></text></TEI>`
	doc, err := tei.ParseBytes([]byte(src), "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc.Body()
}

func pageText(p *Page) string {
	return tei.NormalizeSpace(p.Root.InnerText())
}

func TestSplitPageCount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"no markers", `<p>one</p><p>two</p>`, 1},
		{"one marker", `<p>First</p><pb/><p>Second</p>`, 2},
		{"leading marker", `<pb n="1"/><p>a</p><pb n="2"/><p>b</p>`, 3},
		{"nested markers", `<div><p>a<pb/>b</p><pb/><p>c</p></div>`, 3},
		{"empty body", ``, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := Split(parseBody(t, tt.body))
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if len(pages) != tt.want {
				t.Fatalf("got %d pages, want %d", len(pages), tt.want)
			}
			for i, p := range pages {
				if p.Index != i {
					t.Fatalf("page %d has index %d", i, p.Index)
				}
			}
		})
	}
}

func TestSplitContent(t *testing.T) {
	pages, err := Split(parseBody(t, `<p>First</p><pb/><p>Second</p>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := pageText(pages[0]); got != "First" {
		t.Fatalf("page 0 = %q", got)
	}
	if got := pageText(pages[1]); got != "Second" {
		t.Fatalf("page 1 = %q", got)
	}
	if pages[0].Marker() != nil {
		t.Fatal("leading page must not start with a marker")
	}
	if pages[1].Marker() == nil {
		t.Fatal("page 1 must start with its marker")
	}
}

func TestSplitReplicatesAncestors(t *testing.T) {
	pages, err := Split(parseBody(t, `<div type="letter"><p rend="x">before<pb n="2"/>after</p><p>next</p></div>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages", len(pages))
	}

	second := pages[1].Root
	pb := second.FirstChild
	if !tei.IsElement(pb, "pb") || tei.Attr(pb, "n") != "2" {
		t.Fatalf("expected pb first, got %#v", pb)
	}
	body := pb.NextSibling
	if !tei.IsElement(body, "body") {
		t.Fatalf("expected body after marker, got %#v", body)
	}
	div := body.FirstChild
	if !tei.IsElement(div, "div") || tei.Attr(div, "type") != "letter" {
		t.Fatalf("div not replicated with attributes: %#v", div)
	}
	p := div.FirstChild
	if !tei.IsElement(p, "p") || tei.Attr(p, "rend") != "x" {
		t.Fatalf("p not replicated: %#v", p)
	}
	if got := p.InnerText(); got != "after" {
		t.Fatalf("continued paragraph = %q", got)
	}
	if next := p.NextSibling; !tei.IsElement(next, "p") || next.InnerText() != "next" {
		t.Fatalf("sibling after marker container not continued on new page: %#v", next)
	}
	if got := pageText(pages[0]); got != "before" {
		t.Fatalf("page 0 = %q", got)
	}
}

func TestSplitSkipsComments(t *testing.T) {
	pages, err := Split(parseBody(t, `<p>a<!-- hidden -->b</p>`))
	if err != nil {
		t.Fatal(err)
	}
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		if n.Type == xmlquery.CommentNode {
			t.Fatal("comment cloned into page")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(pages[0].Root)
}

func TestSplitLeavesSourceUntouched(t *testing.T) {
	body := parseBody(t, `<p>First</p><pb/><p>Second</p>`)
	before := body.OutputXML(true)
	if _, err := Split(body); err != nil {
		t.Fatal(err)
	}
	if after := body.OutputXML(true); after != before {
		t.Fatalf("source mutated:\n%s\n%s", before, after)
	}
}

func TestSplitMarkerCountProperty(t *testing.T) {
	for n := 0; n < 6; n++ {
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, `<p>page %d</p><pb n="%d"/>`, i, i+1)
		}
		b.WriteString(`<p>tail</p>`)
		pages, err := Split(parseBody(t, `<div>`+b.String()+`</div>`))
		if err != nil {
			t.Fatal(err)
		}
		want := 1
		if n > 0 {
			want = n + 1
		}
		if len(pages) != want {
			t.Fatalf("%d markers: got %d pages, want %d", n, len(pages), want)
		}
	}
}

func TestSplitInvalidBody(t *testing.T) {
	if _, err := Split(nil); !errors.Is(err, ErrInvalidBody) {
		t.Fatalf("expected ErrInvalidBody, got %v", err)
	}
	text := &xmlquery.Node{Type: xmlquery.TextNode, Data: "x"}
	if _, err := Split(text); !errors.Is(err, ErrInvalidBody) {
		t.Fatalf("expected ErrInvalidBody, got %v", err)
	}
}
