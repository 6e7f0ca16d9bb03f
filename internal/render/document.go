package render

import (
	"regexp"
	"strings"

	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/pages"
)

// PageRendering pairs both views of one source page. Number is 0 for the
// content before the first page break and n for the content after the
// n-th one.
type PageRendering struct {
	Number        int
	Transcription *Page
	Edited        *Page
}

// Annotations returns the side data of the page. Only the edited view
// emits annotations.
func (p PageRendering) Annotations() annotation.Snapshot {
	if p.Edited == nil {
		return annotation.Snapshot{}
	}
	return p.Edited.Annotations
}

// Document holds the rendered pages of one source document in order.
type Document struct {
	Pages []PageRendering
}

// RenderDocument renders every page with both engines, strictly in page
// order.
func RenderDocument(split []*pages.Page, transcription, edited *Engine, opts Options) (*Document, error) {
	doc := &Document{Pages: make([]PageRendering, 0, len(split))}
	for _, p := range split {
		t, err := transcription.Render(p, opts)
		if err != nil {
			return nil, err
		}
		e, err := edited.Render(p, opts)
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, PageRendering{Number: p.Index, Transcription: t, Edited: e})
	}
	return doc, nil
}

// Page returns the rendering for page number n.
func (d *Document) Page(n int) (PageRendering, bool) {
	for _, p := range d.Pages {
		if p.Number == n {
			return p, true
		}
	}
	return PageRendering{}, false
}

// TranscriptionHTML concatenates the transcription of all pages.
func (d *Document) TranscriptionHTML() string {
	var b strings.Builder
	for _, p := range d.Pages {
		b.WriteString(p.Transcription.HTML)
	}
	return b.String()
}

// EditedHTML concatenates the edited text of all pages.
func (d *Document) EditedHTML() string {
	var b strings.Builder
	for _, p := range d.Pages {
		b.WriteString(p.Edited.HTML)
	}
	return b.String()
}

// TranscriptionText is the plain text of the whole transcription.
func (d *Document) TranscriptionText() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Transcription.Text != "" {
			parts = append(parts, p.Transcription.Text)
		}
	}
	return strings.Join(parts, " ")
}

// EntityIDs returns the distinct entity references of all pages in order
// of first appearance.
func (d *Document) EntityIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range d.Pages {
		for _, e := range p.Annotations().Entities {
			if !seen[e.Value] {
				seen[e.Value] = true
				out = append(out, e.Value)
			}
		}
	}
	return out
}

var hyphenBreak = regexp.MustCompile(`(\p{L})-\s(\p{L})`)

// JoinHyphens undoes line-end hyphenation: "Wort- teil" becomes
// "Wortteil". Only a single whitespace character after the hyphen is
// accepted.
func JoinHyphens(s string) string {
	for {
		joined := hyphenBreak.ReplaceAllString(s, "$1$2")
		if joined == s {
			return s
		}
		s = joined
	}
}

// ConvertSoftHyphens replaces U+00AD with a visible hyphen so that
// JoinHyphens can see it.
func ConvertSoftHyphens(s string) string {
	return strings.ReplaceAll(s, "\u00ad", "-")
}
