package render

import (
	"maps"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"

	"github.com/tei-tools/tei2search/internal/tei"
)

const (
	angleOpen   = "⟨"
	angleClose  = "⟩"
	squareOpen  = "["
	squareClose = "]"
)

// TranscriptionStyles maps rendition codes to classes in the diplomatic
// view.
var TranscriptionStyles = map[string]string{
	"bold":            "bold",
	"centre":          "left",
	"doubleunderline": "doubleunderline",
	"italic":          "italic",
	"letterspace":     "letterspace",
	"right":           "left",
	"smallcaps":       "smallcaps",
	"subscript":       "subscript",
	"superscript":     "superscript",
	"underline":       "underline",
	"wavyunderline":   "underline",
}

// NewTranscription returns the diplomatic view engine. overrides are
// merged over TranscriptionStyles.
func NewTranscription(overrides map[string]string) *Engine {
	styles := maps.Clone(TranscriptionStyles)
	maps.Copy(styles, overrides)
	return New(Variant{
		Name: "transcription",
		Handlers: map[string]Handler{
			"add":    transcribeAdd,
			"del":    transcribeDel,
			"hi":     transcribeHi,
			"item":   element("li"),
			"lb":     element("br"),
			"list":   element("ul"),
			"p":      element("p"),
			"signed": transcribeSigned,
			"span":   element("span"),
		},
		Styles:       styles,
		SkipChildren: []string{"add", "del", "hi", "signed"},
		Suppressed:   []string{"corr", "expan", "note"},
	})
}

// transcribeAdd shows an addition as "⟨text erg.⟩".
func transcribeAdd(c *Context, n *xmlquery.Node) *html.Node {
	if isCourseBus(n) {
		return nil
	}
	span := newElement("span", "")
	prefix := ""
	if prev := tei.PrevSibling(n); prev != nil && !tei.IsElement(prev, "del") {
		prefix = " "
	}
	span.AppendChild(newText(prefix + angleOpen))
	c.transformChildren(n, span)
	span.AppendChild(newText(" "))
	if g := gloss(n, "erg."); g != nil {
		span.AppendChild(g)
	}
	span.AppendChild(newText(angleClose + " "))
	return span
}

// transcribeDel shows a deletion as "[text str.]".
func transcribeDel(c *Context, n *xmlquery.Node) *html.Node {
	span := newElement("span", "")
	span.AppendChild(newText(" " + squareOpen))
	c.transformChildren(n, span)
	span.AppendChild(newText(" "))
	if g := gloss(n, "str."); g != nil {
		span.AppendChild(g)
	}
	suffix := squareClose
	if next := tei.NextSibling(n); next != nil && !tei.IsElement(next, "add") {
		suffix += " "
	}
	span.AppendChild(newText(suffix))
	return span
}

func transcribeHi(c *Context, n *xmlquery.Node) *html.Node {
	span := newElement("span", "")
	if r := tei.Attr(n, "rendition"); r != "" {
		addClass(span, c.style(r))
	}
	c.transformChildren(n, span)
	if tei.Attr(n, "hand") != "" {
		span.AppendChild(newText(" " + angleOpen))
		if g := gloss(n, "unterstr."); g != nil {
			span.AppendChild(g)
		}
		span.AppendChild(newText(angleClose + " "))
	}
	return span
}

// transcribeSigned renders a signature followed by the scribe named in
// its handShift.
func transcribeSigned(c *Context, n *xmlquery.Node) *html.Node {
	div := newElement("div", "")
	span := newElement("span", "")
	div.AppendChild(span)

	scribe := ""
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if tei.IsElement(ch, "handShift") {
			scribe = scribeName(tei.Attr(ch, "scribeRef"))
		}
	}
	if scribe == "" {
		c.transformChildren(n, span)
		return div
	}
	span.AppendChild(newText(angleOpen))
	c.transformChildren(n, span)
	sig := newElement("span", "italic")
	sig.AppendChild(newText(" sign. " + scribe))
	span.AppendChild(sig)
	span.AppendChild(newText(angleClose))
	return div
}
