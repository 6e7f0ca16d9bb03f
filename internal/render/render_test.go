package render

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"

	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/pages"
	"github.com/tei-tools/tei2search/internal/tei"
)

func splitBody(t *testing.T, body string) []*pages.Page {
	t.Helper()
	src := `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>` + body + `</body></text></TEI>`
	doc, err := tei.ParseBytes([]byte(src), "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	split, err := pages.Split(doc.Body())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	return split
}

func renderOne(t *testing.T, e *Engine, body string) *Page {
	t.Helper()
	split := splitBody(t, body)
	p, err := e.Render(split[0], Options{IDs: annotation.NewSequence("id")})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return p
}

func TestTranscriptionPerPage(t *testing.T) {
	split := splitBody(t, `<p>First</p><pb/><p>Second</p>`)
	e := NewTranscription(nil)
	var texts []string
	for _, p := range split {
		out, err := e.Render(p, Options{})
		if err != nil {
			t.Fatal(err)
		}
		texts = append(texts, out.Text)
	}
	if len(texts) != 2 || texts[0] != "First" || texts[1] != "Second" {
		t.Fatalf("page texts = %q", texts)
	}
}

func TestConcatenatedPagesMatchWholeBody(t *testing.T) {
	body := `<div type="letter"><p>Lieber <hi rendition="#italic">Freund</hi>,<lb/>ich</p><pb/><p>schreibe <del>nicht</del><add>dir</add> heute.</p><pb/><p>Ende</p></div>`
	e := NewTranscription(nil)

	var perPage []string
	for _, p := range splitBody(t, body) {
		out, err := e.Render(p, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != "" {
			perPage = append(perPage, out.Text)
		}
	}

	doc, err := tei.ParseBytes([]byte(`<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>`+body+`</body></text></TEI>`), "whole")
	if err != nil {
		t.Fatal(err)
	}
	whole := &pages.Page{Root: &xmlquery.Node{Type: xmlquery.DocumentNode, FirstChild: doc.Body()}}
	out, err := e.Render(whole, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(perPage, " "); got != out.Text {
		t.Fatalf("per page %q != whole %q", got, out.Text)
	}
}

func TestTranscriptionAddDel(t *testing.T) {
	p := renderOne(t, NewTranscription(nil), `<p>a <del>alt</del><add>neu</add> b</p>`)
	want := "a [alt Str.]⟨neu Erg.⟩ b"
	if p.Text != want {
		t.Fatalf("text = %q, want %q", p.Text, want)
	}
}

func TestTranscriptionHandGloss(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"scribe pattern", `<p>x <add hand="#scrb_2_3">y</add></p>`, "x ⟨y erg. Schrhd.2 3⟩"},
		{"named hand", `<p>x <add hand="#Carl_Friedrich">y</add></p>`, "x ⟨y erg. Carl Friedrich⟩"},
		{"underlined", `<p><hi hand="#Carl">wichtig</hi></p>`, "wichtig ⟨unterstr. Carl⟩"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := renderOne(t, NewTranscription(nil), tt.body)
			if p.Text != tt.want {
				t.Fatalf("text = %q, want %q", p.Text, tt.want)
			}
		})
	}
}

func TestTranscriptionSuppressesApparatus(t *testing.T) {
	p := renderOne(t, NewTranscription(nil), `<p>Text<note>Kommentar</note> <choice><abbr>Hr.</abbr><expan>Herr</expan></choice> <add type="courseBus">x</add></p>`)
	if p.Text != "Text Hr." {
		t.Fatalf("text = %q", p.Text)
	}
	if len(p.Annotations.AllIDs) != 0 {
		t.Fatalf("transcription must not annotate: %#v", p.Annotations)
	}
}

func TestTranscriptionSigned(t *testing.T) {
	p := renderOne(t, NewTranscription(nil), `<closer><signed><handShift scribeRef="#Ernst_Meyer"/>E. M.</signed></closer>`)
	if p.Text != "⟨E. M. sign. Ernst Meyer⟩" {
		t.Fatalf("text = %q", p.Text)
	}
}

func TestStyles(t *testing.T) {
	tests := []struct {
		engine *Engine
		rend   string
		want   string
	}{
		{NewTranscription(nil), "#italic", "italic"},
		{NewTranscription(nil), "simple:centre", "left"},
		{NewTranscription(nil), "#unknown", ""},
		{NewEdited(nil, ""), "#underline", "letterspace"},
		{NewEdited(nil, ""), "#italic", "normal"},
		{NewEdited(map[string]string{"italic": "kursiv"}, ""), "#italic", "kursiv"},
	}
	for _, tt := range tests {
		p := renderOne(t, tt.engine, `<p><hi rendition="`+tt.rend+`">x</hi></p>`)
		span := findElement(p.Root, "span")
		if span == nil {
			t.Fatalf("%s %s: no span in %s", tt.engine.Name(), tt.rend, p.HTML)
		}
		if got := getAttr(span, "class"); got != tt.want {
			t.Errorf("%s %s: class = %q, want %q", tt.engine.Name(), tt.rend, got, tt.want)
		}
	}
}

func TestPageBreakLinksGraphic(t *testing.T) {
	split := splitBody(t, `<p>a</p><pb n="2" facs="#img2"/><p>b</p>`)
	out, err := NewTranscription(nil).Render(split[1], Options{Graphics: map[string]string{"img2": "scans/0002.jpg"}})
	if err != nil {
		t.Fatal(err)
	}
	a := findElement(out.Root, "a")
	if a == nil || getAttr(a, "href") != "/scans/0002" {
		t.Fatalf("expected facsimile link, got %s", out.HTML)
	}
	if !strings.HasPrefix(out.Text, "2 ") {
		t.Fatalf("text = %q", out.Text)
	}
}

func TestEditedAnnotations(t *testing.T) {
	body := `<p>Am <date when="1822-03-05">5. III.</date> schrieb <name type="person" ref="gnd:118540238">Goethe</name>` +
		` <seg>einen sehr langen Satz</seg><note>Anmerkung zum Satz</note>` +
		` <sic>Fehlr</sic> <hi hand="#Carl" rendition="#underline">ganz wichtig hier</hi>` +
		` <bibl><ref target="lit.xml#Meyer_1900">Meyer</ref></bibl>` +
		` <note>freie Note</note> <del>weg</del></p>`
	p := renderOne(t, NewEdited(nil, ""), body)
	snap := p.Annotations

	if len(snap.Dates) != 1 || snap.Dates[0].Value != "5. März 1822" {
		t.Fatalf("dates = %#v", snap.Dates)
	}
	if len(snap.Entities) != 1 || snap.Entities[0].Value != "118540238" {
		t.Fatalf("entities = %#v", snap.Entities)
	}
	if len(snap.Works) != 1 || snap.Works[0].Value != `<a href="./../literatur/Meyer 1900" target="_blank">Meyer 1900</a>` {
		t.Fatalf("works = %#v", snap.Works)
	}

	notes := annotation.Values(snap.Notes)
	want := []string{
		"einen … Satz] Anmerkung zum Satz",
		`Fehlr] <span class="italic">sic!</span>`,
		`ganz … hier] <span class="italic">unterstr. Carl</span>`,
		"freie Note",
	}
	if strings.Join(notes, "|") != strings.Join(want, "|") {
		t.Fatalf("notes = %q\nwant    %q", notes, want)
	}
	if strings.Contains(p.Text, "weg") {
		t.Fatalf("deletion rendered in edited text: %q", p.Text)
	}
	if strings.Contains(p.Text, "Anmerkung") {
		t.Fatalf("note body rendered inline: %q", p.Text)
	}
}

func TestEditedIDsMatchAnnotations(t *testing.T) {
	body := `<p><date when="1900-01-02">x</date> <name ref="gnd:1">A</name> <rs ref="gnd:2">B</rs>` +
		` <seg>eins zwei drei</seg><note>n1 <name ref="gnd:3">C</name></note> <note>n2</note>` +
		` <sic>s</sic> <hi hand="#h">u</hi> <bibl><ref target="#W">w</ref></bibl></p><pb/><p><name ref="gnd:4">D</name></p>`
	e := NewEdited(nil, "")
	gen := annotation.NewSequence("u")
	for _, page := range splitBody(t, body) {
		out, err := e.Render(page, Options{IDs: gen})
		if err != nil {
			t.Fatal(err)
		}
		written := collectIDs(out.Root)
		seen := map[string]bool{}
		for _, id := range out.Annotations.AllIDs {
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
		if len(written) != len(out.Annotations.AllIDs) {
			t.Fatalf("page %d: %d ids written, %d allocated", page.Index, len(written), len(out.Annotations.AllIDs))
		}
		for _, id := range written {
			matches := 0
			for _, list := range [][]annotation.Entry{out.Annotations.Notes, out.Annotations.Dates, out.Annotations.Works, out.Annotations.Entities} {
				for _, entry := range list {
					if entry.ID == id {
						matches++
					}
				}
			}
			if matches != 1 {
				t.Fatalf("id %s found in %d maps", id, matches)
			}
		}
	}
}

func TestEditedEntityWithoutIdentifier(t *testing.T) {
	p := renderOne(t, NewEdited(nil, "gnd:"), `<p><name ref="gnd:">A</name> <name ref="gnd: ">B</name> <name ref="gnd:118540238">C</name></p>`)
	snap := p.Annotations
	if len(snap.Entities) != 1 || snap.Entities[0].Value != "118540238" {
		t.Fatalf("entities = %#v", snap.Entities)
	}
	if len(snap.AllIDs) != 1 || snap.AllIDs[0] != snap.Entities[0].ID {
		t.Fatalf("ids = %q, entities = %#v", snap.AllIDs, snap.Entities)
	}
	if written := collectIDs(p.Root); len(written) != 1 {
		t.Fatalf("ids written = %q", written)
	}
	if !strings.Contains(p.Text, "A") || !strings.Contains(p.Text, "B") {
		t.Fatalf("name text dropped: %q", p.Text)
	}
}

func TestRenderNodeMalformedTree(t *testing.T) {
	br := newElement("br", "")
	br.AppendChild(newText("kaputt"))
	if got := renderNode(br); got != "kaputt" {
		t.Fatalf("renderNode = %q", got)
	}
	if got := renderNode(newAnchor("#x", "ok")); !strings.HasPrefix(got, `<a href="#x"`) {
		t.Fatalf("renderNode = %q", got)
	}
}

func TestEditedRefInNote(t *testing.T) {
	p := renderOne(t, NewEdited(nil, ""), `<p>x<note>Siehe <ref target="http://example.org/briefe/brief_12.xml"/></note></p>`)
	if len(p.Annotations.Notes) != 1 {
		t.Fatalf("notes = %#v", p.Annotations.Notes)
	}
	got := p.Annotations.Notes[0].Value
	if got != `Siehe <a href="brief_12" target="_blank">brief_12</a>` {
		t.Fatalf("note = %q", got)
	}
}

func TestForenameSpacing(t *testing.T) {
	p := renderOne(t, NewEdited(nil, ""), `<p><persName><name type="forename">Johann</name><name type="surname">Goethe</name></persName></p>`)
	if p.Text != "Johann Goethe" {
		t.Fatalf("text = %q", p.Text)
	}
}

func TestGermanDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1822-03-05", "5. März 1822", true},
		{"1900-12-31", "31. Dezember 1900", true},
		{"1822-05", "Mai 1822", true},
		{"1822", "1822", true},
		{"1822-13-01", "", false},
		{"gestern", "", false},
	}
	for _, tt := range tests {
		got, ok := germanDate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("germanDate(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestJoinHyphens(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"foo- bar", "foobar"},
		{"foo - bar", "foo - bar"},
		{"foo-  bar", "foo-  bar"},
		{"foo-bar", "foo-bar"},
		{"foo- 1", "foo- 1"},
		{"Brief- wech- sel", "Briefwechsel"},
		{"Über- gabe", "Übergabe"},
	}
	for _, tt := range tests {
		if got := JoinHyphens(tt.in); got != tt.want {
			t.Errorf("JoinHyphens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvertSoftHyphens(t *testing.T) {
	if got := JoinHyphens(ConvertSoftHyphens("Wort\u00ad teil")); got != "Wortteil" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderDocumentNumbersPages(t *testing.T) {
	split := splitBody(t, `<p>vorn</p><pb n="1"/><p>eins</p><pb n="2"/><p>zwei</p>`)
	doc, err := RenderDocument(split, NewTranscription(nil), NewEdited(nil, ""), Options{IDs: annotation.NewSequence("d")})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("pages = %d", len(doc.Pages))
	}
	p, ok := doc.Page(2)
	if !ok || !strings.Contains(p.Edited.Text, "zwei") {
		t.Fatalf("page 2 = %#v", p)
	}
	if got := doc.TranscriptionText(); got != "vorn 1 eins 2 zwei" {
		t.Fatalf("transcription = %q", got)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findElement(c, tag); f != nil {
			return f
		}
	}
	return nil
}

func collectIDs(n *html.Node) []string {
	var out []string
	if n.Type == html.ElementNode {
		if id := getAttr(n, "id"); id != "" {
			out = append(out, id)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, collectIDs(c)...)
	}
	return out
}
