package render

import (
	"maps"
	"path"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"

	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/tei"
)

// DefaultEntityPrefix marks name references that point into the GND.
const DefaultEntityPrefix = tei.DefaultEntityPrefix

// EditedStyles maps rendition codes to classes in the edited view.
var EditedStyles = map[string]string{
	"bold":            "bold",
	"centre":          "left",
	"doubleunderline": "letterspace",
	"italic":          "normal",
	"letterspace":     "letterspace",
	"right":           "left",
	"smallcaps":       "letterspace",
	"subscript":       "subscript",
	"superscript":     "superscript",
	"underline":       "letterspace",
	"wavyunderline":   "letterspace",
}

var germanMonths = [...]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

// NewEdited returns the normalized reading view engine. It is the only
// variant that emits annotations. Names whose ref starts with
// entityPrefix become entity annotations; an empty prefix means
// DefaultEntityPrefix.
func NewEdited(overrides map[string]string, entityPrefix string) *Engine {
	if entityPrefix == "" {
		entityPrefix = DefaultEntityPrefix
	}
	styles := maps.Clone(EditedStyles)
	maps.Copy(styles, overrides)
	name := entityHandler(entityPrefix)
	return New(Variant{
		Name: "edited",
		Handlers: map[string]Handler{
			"add":      editedAdd,
			"bibl":     editedBibl,
			"corr":     element("span", "italic"),
			"date":     editedDate,
			"hi":       editedHi,
			"item":     element("li"),
			"lb":       func(*Context, *xmlquery.Node) *html.Node { return newText(" ") },
			"list":     element("ul"),
			"name":     name,
			"note":     editedNote,
			"p":        element("p"),
			"ref":      editedRef,
			"rs":       name,
			"seg":      editedSeg,
			"sic":      editedSic,
			"signed":   element("div", "signed"),
			"supplied": element("span", "italic"),
		},
		Styles:       styles,
		SkipChildren: []string{"bibl", "note"},
		Suppressed:   []string{"abbr", "del", "orig"},
	})
}

func editedAdd(_ *Context, n *xmlquery.Node) *html.Node {
	if isCourseBus(n) {
		return nil
	}
	return newElement("span", "")
}

// editedBibl turns an inline citation into a link to the bibliography and
// records it as a related work.
func editedBibl(c *Context, n *xmlquery.Node) *html.Node {
	ref := tei.FirstChild(n)
	if !tei.IsElement(ref, "ref") {
		return nil
	}
	a := editedRef(c, ref)
	if a == nil {
		return nil
	}
	c.transformChildren(ref, a)

	_, fragment, _ := strings.Cut(tei.Attr(ref, "target"), "#")
	if fragment == "" || !c.Annotating() {
		return a
	}
	title := strings.ReplaceAll(fragment, "_", " ")
	id := c.notes.NewID()
	c.notes.AddWork(id, renderNode(newAnchor("./../literatur/"+title, title)))
	setAttr(a, "id", id)
	return a
}

func editedDate(c *Context, n *xmlquery.Node) *html.Node {
	span := newElement("span", "")
	when := tei.Attr(n, "when")
	if when == "" || !c.Annotating() {
		return span
	}
	text, ok := germanDate(when)
	if !ok {
		return span
	}
	id := c.notes.NewID()
	c.notes.AddDate(id, text)
	setAttr(span, "id", id)
	return span
}

// germanDate formats an ISO date ("1822-03-05", "1822-03" or "1822") as
// "5. März 1822", "März 1822" or "1822".
func germanDate(when string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(when), "-")
	if len(parts) == 0 || len(parts) > 3 || len(parts[0]) != 4 {
		return "", false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	if len(parts) == 1 {
		return strconv.Itoa(year), true
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	if len(parts) == 2 {
		return germanMonths[month-1] + " " + strconv.Itoa(year), true
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	return strconv.Itoa(day) + ". " + germanMonths[month-1] + " " + strconv.Itoa(year), true
}

// editedHi applies the rendition class. Underlinings by a named hand get a
// note quoting the underlined words.
func editedHi(c *Context, n *xmlquery.Node) *html.Node {
	span := newElement("span", "")
	if r := tei.Attr(n, "rendition"); r != "" {
		addClass(span, c.style(r))
	}
	if tei.Attr(n, "hand") == "" || !c.Annotating() {
		return span
	}
	g := gloss(n, "unterstr.")
	if g == nil {
		return span
	}
	id := c.notes.NewID()
	c.notes.AddNote(id, annotation.Lemmatize(c.preview(n))+"] "+renderNode(g))
	setAttr(span, "id", id)
	return span
}

func entityHandler(prefix string) Handler {
	return func(c *Context, n *xmlquery.Node) *html.Node {
		span := newElement("span", "")
		ref := tei.Attr(n, "ref")
		entity := strings.TrimSpace(strings.TrimPrefix(ref, prefix))
		if !strings.HasPrefix(ref, prefix) || entity == "" || !c.Annotating() {
			return span
		}
		id := c.notes.NewID()
		c.notes.AddEntity(id, entity)
		setAttr(span, "id", id)
		addClass(span, tei.Attr(n, "type"))
		return span
	}
}

// editedNote moves the note body into the annotation panel. A note that
// directly follows a segment is attached to that segment's entry.
func editedNote(c *Context, n *xmlquery.Node) *html.Node {
	if !c.Annotating() {
		return nil
	}
	text := strings.TrimSpace(c.renderDetached(n))
	if text == "" {
		return nil
	}
	if c.lastSeg != nil && tei.PrevSibling(n) == c.lastSeg {
		c.notes.AppendNote(c.lastSegID, "] "+text)
		c.lastSeg, c.lastSegID = nil, ""
		return nil
	}
	id := c.notes.NewID()
	c.notes.AddNote(id, text)
	anchor := newElement("span", "note")
	setAttr(anchor, "id", id)
	return anchor
}

func editedRef(_ *Context, n *xmlquery.Node) *html.Node {
	target := tei.Attr(n, "target")
	if tei.IsElement(n.Parent, "note") && target != "" {
		base := path.Base(target)
		target, _, _ = strings.Cut(base, ".")
	}
	if target == "" {
		return nil
	}
	a := newAnchor(target, "")
	if n.FirstChild == nil {
		a.AppendChild(newText(target))
	}
	return a
}

func editedSeg(c *Context, n *xmlquery.Node) *html.Node {
	text := c.preview(n)
	if text == "" {
		return nil
	}
	span := newElement("span", "")
	if !c.Annotating() {
		return span
	}
	id := c.notes.NewID()
	c.notes.AddNote(id, annotation.Lemmatize(text))
	c.lastSeg, c.lastSegID = n, id
	setAttr(span, "id", id)
	return span
}

func editedSic(c *Context, n *xmlquery.Node) *html.Node {
	span := newElement("span", "")
	text := c.preview(n)
	if text == "" || !c.Annotating() {
		return span
	}
	mark := newElement("span", "italic")
	mark.AppendChild(newText("sic!"))
	id := c.notes.NewID()
	c.notes.AddNote(id, annotation.Lemmatize(text)+"] "+renderNode(mark))
	setAttr(span, "id", id)
	return span
}
