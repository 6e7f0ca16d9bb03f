package literature

import (
	"reflect"
	"testing"

	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/tei"
)

const bibliography = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>
<listBibl>
  <bibl xml:id="Meyer_1900">
    <author><persName>Meyer, Hans</persName> <persName>Schulz, Eva</persName></author>
    <title type="main">Die  Briefe</title>
    <title type="sub" level="m">Eine Auswahl</title>
    <edition>2. Auflage</edition>
    <publisher>Verlag A</publisher>
    <pubPlace>Leipzig</pubPlace>
    <date>1900</date>
    <idno type="ISBN">978-3</idno>
    <biblScope unit="volume" n="2">Bd. 2</biblScope>
    <biblScope unit="page">12–14</biblScope>
    <note>unmapped</note>
    <relatedItem><ref target="https://example.org/meyer">Online</ref><ref target="_">leer</ref></relatedItem>
  </bibl>
  <bibl><title type="main">ohne id</title></bibl>
  <bibl xml:id="Kurz"><title>Kurz</title></bibl>
</listBibl>
</body></text></TEI>`

func TestDocuments(t *testing.T) {
	doc, err := tei.ParseBytes([]byte(bibliography), "lit.xml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := New(map[string]string{
		"title_main":         "title",
		"title_sub_m":        "subtitle",
		"title_":             "short_title",
		"date":               "publication_date",
		"idno_isbn":          "isbn",
		"biblScope_volume_2": "volume",
		"biblScope_page":     "pages",
	})
	docs := e.Documents(doc)
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}

	d := docs[0]
	if d.ID != "Meyer 1900" || d.Doctype != search.DoctypeLiterature {
		t.Fatalf("id/doctype = %q/%q", d.ID, d.Doctype)
	}
	want := map[string]string{
		"title":            "Die Briefe",
		"subtitle":         "Eine Auswahl",
		"publication_date": "1900",
		"isbn":             "978-3",
		"volume":           "Bd. 2",
		"pages":            "12–14",
	}
	for field, v := range want {
		if got := d.String(field); got != v {
			t.Errorf("%s = %q, want %q", field, got, v)
		}
	}
	lists := map[string][]string{
		LiteratureAuthor: {"Meyer, Hans", "Schulz, Eva"},
		Publisher:        {"Verlag A"},
		PubPlace:         {"Leipzig"},
		Edition:          {"2. Auflage"},
		URI:              {"https://example.org/meyer"},
	}
	for field, v := range lists {
		if got := d.Strings(field); !reflect.DeepEqual(got, v) {
			t.Errorf("%s = %q, want %q", field, got, v)
		}
	}
	if d.Has("note") {
		t.Error("unmapped child was stored")
	}

	if docs[1].ID != "Kurz" || docs[1].String("short_title") != "Kurz" {
		t.Fatalf("second = %+v", docs[1])
	}
}
