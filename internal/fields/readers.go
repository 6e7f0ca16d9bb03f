package fields

import (
	"path"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/tei-tools/tei2search/internal/tei"
)

var (
	textExpr          = tei.MustCompile("//tei:text")
	teiExpr           = tei.MustCompile("//tei:TEI")
	titleNameExpr     = tei.MustCompile(`//tei:title[@level="a"]//tei:name`)
	titleDescExpr     = tei.MustCompile(`//tei:title[@type="desc"]`)
	titleShortExpr    = tei.MustCompile(`//tei:title[@type="short"]`)
	titleExpr         = tei.MustCompile("//tei:title")
	authorAutExpr     = tei.MustCompile(`//tei:name[@type="person" and @subtype="aut"]`)
	authorStmtExpr    = tei.MustCompile(`//tei:titleStmt//tei:author//tei:name[@type="person"]`)
	editorExpr        = tei.MustCompile(`//tei:titleStmt//tei:editor//tei:name[@type="person"]`)
	publisherExpr     = tei.MustCompile(`//tei:publicationStmt//tei:publisher//tei:name[@type="org"]`)
	pubPlaceExpr      = tei.MustCompile(`//tei:publicationStmt//tei:pubPlace//tei:name[@type="place"]`)
	volumePartExpr    = tei.MustCompile(`//tei:title[@level="m"]`)
	projectExpr       = tei.MustCompile(`//tei:title[@level="s"]`)
	markerExpr        = tei.MustCompile(`//tei:respStmt//tei:name[@type="person"]`)
	countryExpr       = tei.MustCompile("//tei:country")
	repositoryExpr    = tei.MustCompile("//tei:repository")
	institutionExpr   = tei.MustCompile("//tei:institution")
	settlementExpr    = tei.MustCompile("//tei:settlement")
	destinationExpr   = tei.MustCompile(`//tei:name[@type="place" and @subtype="dtn"]`)
	originPlaceExpr   = tei.MustCompile(`//tei:name[@type="place" and @subtype="orn"]`)
	recipientExpr     = tei.MustCompile(`//tei:name[@type="person" and @subtype="rcp"]`)
	freeKeywordExpr   = tei.MustCompile(`//tei:keywords[@scheme="frei" or @scheme="free"]/tei:term`)
	gndKeywordExpr    = tei.MustCompile(`//tei:keywords[@scheme="#gnd"]/tei:term`)
	graphicExpr       = tei.MustCompile("//tei:graphic")
	licenceExpr       = tei.MustCompile("//tei:licence")
	pbExpr            = tei.MustCompile("//tei:pb")
	dateExpr          = tei.MustCompile("//tei:date")
	dateOriginExpr    = tei.MustCompile(`//tei:date[@type="orn"]`)
	dateExistenceExpr = tei.MustCompile(`//tei:date[@type="existence"]`)
	referenceExpr     = tei.MustCompile(`//tei:relatedItem[@type="letter" and @subtype="related"]/tei:ref`)
	responseExpr      = tei.MustCompile(`//tei:relatedItem[@type="letter" and @subtype="response"]/tei:ref`)
	relatedExpr       = tei.MustCompile(`//tei:relatedItem[@type="letter" and not(@subtype)]//tei:ref`)
	extentExpr        = tei.MustCompile("//tei:supportDesc/tei:extent")
	heightExpr        = tei.MustCompile("//tei:supportDesc/tei:extent/tei:dimensions/tei:height")
	widthExpr         = tei.MustCompile("//tei:supportDesc/tei:extent/tei:dimensions/tei:width")
	dimensionsExpr    = tei.MustCompile("//tei:supportDesc/tei:extent/tei:dimensions")
	bindingExpr       = tei.MustCompile("//tei:bindingDesc/tei:p")
	idnoExpr          = tei.MustCompile("//tei:idno")
	sourceDescExpr    = tei.MustCompile("//tei:sourceDesc")
	handNoteExpr      = tei.MustCompile("//tei:handNote")
	ownGNDExpr        = tei.MustCompile(`//tei:titleStmt//tei:title[@level="a"]//tei:name`)
	biblScopeExpr     = tei.MustCompile("//tei:biblScope")
	abstractExpr      = tei.MustCompile("//tei:abstract")
)

// firstText returns the text of the first match that has any.
func firstText(doc *tei.Document, expr *xpath.Expr) string {
	for _, n := range doc.Find(expr) {
		if t := tei.Text(n); t != "" {
			return t
		}
	}
	return ""
}

// ownText is the text of n's direct text children, like XPath text().
func ownText(n *xmlquery.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if tei.IsText(c) {
			b.WriteString(c.Data)
		}
	}
	return tei.NormalizeSpace(b.String())
}

func firstOwnText(doc *tei.Document, expr *xpath.Expr) string {
	for _, n := range doc.Find(expr) {
		if t := ownText(n); t != "" {
			return t
		}
	}
	return ""
}

func allTexts(doc *tei.Document, expr *xpath.Expr) []string {
	var out []string
	for _, n := range doc.Find(expr) {
		if t := tei.Text(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ID reads the document identifier from text/@xml:id, falling back to
// TEI/@xml:id.
func (e *Extractor) ID(doc *tei.Document) string {
	for _, expr := range []*xpath.Expr{textExpr, teiExpr} {
		for _, n := range doc.Find(expr) {
			if id := strings.TrimSpace(tei.XMLAttr(n, "id")); id != "" {
				return id
			}
		}
	}
	return ""
}

func (e *Extractor) Title(doc *tei.Document) string {
	if t := firstOwnText(doc, titleNameExpr); t != "" {
		return t
	}
	if t := firstText(doc, titleDescExpr); t != "" {
		return t
	}
	return firstOwnText(doc, titleExpr)
}

func (e *Extractor) ShortTitle(doc *tei.Document) string {
	if t := firstOwnText(doc, titleNameExpr); t != "" {
		return t
	}
	return firstText(doc, titleShortExpr)
}

// Author returns the author marked in the text, else the person names of
// the title statement. Structured names are joined from their parts.
func (e *Extractor) Author(doc *tei.Document) []string {
	if a := firstText(doc, authorAutExpr); a != "" {
		return []string{a}
	}
	var out []string
	for _, n := range doc.Find(authorStmtExpr) {
		var parts []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if tei.IsElement(c, "name") {
				if t := tei.Text(c); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) == 0 {
			if t := tei.Text(n); t != "" {
				out = append(out, t)
			}
			continue
		}
		if e.cfg.ReverseAuthorNames {
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
		}
		out = append(out, strings.Join(parts, ", "))
	}
	return out
}

func (e *Extractor) Editor(doc *tei.Document) []string { return allTexts(doc, editorExpr) }

func (e *Extractor) Publisher(doc *tei.Document) string { return firstText(doc, publisherExpr) }

func (e *Extractor) PublicationPlace(doc *tei.Document) string { return firstText(doc, pubPlaceExpr) }

func (e *Extractor) VolumePart(doc *tei.Document) string { return firstOwnText(doc, volumePartExpr) }

func (e *Extractor) Project(doc *tei.Document) string { return firstOwnText(doc, projectExpr) }

// Marker is the last person named in a responsibility statement.
func (e *Extractor) Marker(doc *tei.Document) string {
	names := allTexts(doc, markerExpr)
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

func (e *Extractor) Country(doc *tei.Document) string { return firstText(doc, countryExpr) }

func (e *Extractor) Repository(doc *tei.Document) string { return firstText(doc, repositoryExpr) }

func (e *Extractor) Settlement(doc *tei.Document) string { return firstText(doc, settlementExpr) }

// Institution combines repository, institution and settlement, followed by
// the country in parentheses: "Archiv, Universität, Göttingen (Deutschland)".
func (e *Extractor) Institution(doc *tei.Document) string {
	var parts []string
	for _, p := range []string{e.Repository(doc), firstText(doc, institutionExpr), e.Settlement(doc)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, ", ")
	if c := e.Country(doc); c != "" {
		out = strings.TrimSpace(out + " (" + c + ")")
	}
	return out
}

func (e *Extractor) DestinationPlace(doc *tei.Document) string {
	return firstText(doc, destinationExpr)
}

func (e *Extractor) OriginPlace(doc *tei.Document) string { return firstText(doc, originPlaceExpr) }

func (e *Extractor) Recipient(doc *tei.Document) string { return firstText(doc, recipientExpr) }

func (e *Extractor) FreeKeywords(doc *tei.Document) []string { return allTexts(doc, freeKeywordExpr) }

func (e *Extractor) GNDKeywords(doc *tei.Document) []string { return allTexts(doc, gndKeywordExpr) }

func (e *Extractor) ImageIDs(doc *tei.Document) []string {
	var out []string
	for _, n := range doc.Find(graphicExpr) {
		if id := tei.NormalizeSpace(tei.XMLAttr(n, "id")); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (e *Extractor) ImageURLs(doc *tei.Document) []string {
	var out []string
	for _, n := range doc.Find(graphicExpr) {
		if u := tei.NormalizeSpace(tei.Attr(n, "url")); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Graphics maps image ids to their URLs. Graphics missing either are
// left out.
func (e *Extractor) Graphics(doc *tei.Document) map[string]string {
	out := make(map[string]string)
	for _, n := range doc.Find(graphicExpr) {
		id := tei.NormalizeSpace(tei.XMLAttr(n, "id"))
		u := tei.NormalizeSpace(tei.Attr(n, "url"))
		if id != "" && u != "" {
			out[id] = u
		}
	}
	return out
}

// Language maps the first xml:lang inside the text through the language
// table.
func (e *Extractor) Language(doc *tei.Document) string {
	for _, text := range doc.Find(textExpr) {
		if code := firstLang(text); code != "" {
			if name, ok := e.cfg.Languages[code]; ok {
				return name
			}
			return code
		}
	}
	return ""
}

func firstLang(n *xmlquery.Node) string {
	if n.Type != xmlquery.ElementNode {
		return ""
	}
	if l := tei.XMLAttr(n, "lang"); l != "" {
		return l
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if l := firstLang(c); l != "" {
			return l
		}
	}
	return ""
}

func (e *Extractor) License(doc *tei.Document) string { return firstText(doc, licenceExpr) }

func (e *Extractor) LicenseLink(doc *tei.Document) string {
	for _, n := range doc.Find(licenceExpr) {
		if t := strings.TrimSpace(tei.Attr(n, "target")); t != "" {
			return t
		}
	}
	return ""
}

// NumberOfPages counts the page break markers. Zero means the document is
// not paginated.
func (e *Extractor) NumberOfPages(doc *tei.Document) int {
	return len(doc.Find(pbExpr))
}

func (e *Extractor) OriginDate(doc *tei.Document) string { return firstOwnText(doc, dateExpr) }

func (e *Extractor) PublicationDate(doc *tei.Document) string {
	if d := firstText(doc, dateOriginExpr); d != "" {
		return d
	}
	return e.OriginDate(doc)
}

// Reference describes the letter this one refers to, with a link to it
// when the target names a document file.
func (e *Extractor) Reference(doc *tei.Document) string {
	return e.linkedRef(doc.FindOne(referenceExpr))
}

// Response describes the letter answering this one.
func (e *Extractor) Response(doc *tei.Document) string {
	return e.linkedRef(doc.FindOne(responseExpr))
}

func (e *Extractor) RelatedItems(doc *tei.Document) []string {
	var out []string
	for _, n := range doc.Find(relatedExpr) {
		if r := e.linkedRef(n); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (e *Extractor) linkedRef(ref *xmlquery.Node) string {
	text := tei.Text(ref)
	if text == "" {
		return ""
	}
	base := path.Base(tei.Attr(ref, "target"))
	id, _, found := strings.Cut(base, ".")
	if !found {
		return text
	}
	if u := e.DetailURL(id); u != "" {
		return text + " (" + u + ")"
	}
	return text
}

// ScriptSource describes the physical carrier: extent, dimensions and
// binding, e.g. "1 Bogen 22 x 18 cm. Halbleder".
func (e *Extractor) ScriptSource(doc *tei.Document) string {
	var b strings.Builder
	b.WriteString(firstOwnText(doc, extentExpr))
	height := firstText(doc, heightExpr)
	width := firstText(doc, widthExpr)
	unit := ""
	if d := doc.FindOne(dimensionsExpr); d != nil {
		unit = strings.TrimSpace(tei.Attr(d, "unit"))
	}
	if height != "" && width != "" && unit != "" {
		b.WriteString(" " + height + " x " + width + " " + unit + ".")
	}
	if binding := firstOwnText(doc, bindingExpr); binding != "" {
		b.WriteString(" " + binding)
	}
	return tei.NormalizeSpace(b.String())
}

func (e *Extractor) Shelfmark(doc *tei.Document) string { return firstText(doc, idnoExpr) }

func (e *Extractor) SourceDescription(doc *tei.Document) string {
	return firstText(doc, sourceDescExpr)
}

// Writers lists the hands, marking the main hand as the base layer.
func (e *Extractor) Writers(doc *tei.Document) []string {
	var out []string
	for _, n := range doc.Find(handNoteExpr) {
		w := tei.Text(n)
		if w == "" {
			continue
		}
		for _, a := range tei.DataAttrs(n) {
			if a.Value == "major" {
				w += " – (Grundschicht)"
				break
			}
		}
		out = append(out, w)
	}
	return out
}

// ArticleOwnGNDs returns the authority ids of the names in the article
// title, without their scheme prefix.
func (e *Extractor) ArticleOwnGNDs(doc *tei.Document) []string {
	var out []string
	for _, n := range doc.Find(ownGNDExpr) {
		if _, id, ok := strings.Cut(tei.Attr(n, "ref"), ":"); ok && id != "" {
			out = append(out, strings.TrimSpace(id))
		}
	}
	return out
}

func (e *Extractor) PageFrom(doc *tei.Document) string { return e.biblScope(doc, "from") }

func (e *Extractor) PageTo(doc *tei.Document) string { return e.biblScope(doc, "to") }

func (e *Extractor) biblScope(doc *tei.Document, attr string) string {
	for _, n := range doc.Find(biblScopeExpr) {
		v := strings.TrimSpace(tei.Attr(n, attr))
		if v == "" {
			continue
		}
		if i, err := strconv.Atoi(v); err == nil {
			return strconv.Itoa(i)
		}
		return v
	}
	return ""
}

// ExistencePeriod renders a date range as "from–to", or the date's text
// when it has no range attributes.
func (e *Extractor) ExistencePeriod(doc *tei.Document) string {
	n := doc.FindOne(dateExistenceExpr)
	if n == nil {
		return ""
	}
	from := strings.TrimSpace(tei.Attr(n, "from"))
	to := strings.TrimSpace(tei.Attr(n, "to"))
	switch {
	case from != "" && to != "":
		return from + "–" + to
	case from != "":
		return from + "–"
	case to != "":
		return "–" + to
	}
	return tei.Text(n)
}

// Fulltext is the plain text of every div in the body.
func (e *Extractor) Fulltext(doc *tei.Document) string {
	body := doc.Body()
	if body == nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *xmlquery.Node, inDiv bool)
	walk = func(n *xmlquery.Node, inDiv bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case tei.IsText(c) && inDiv:
				b.WriteString(c.Data)
			case c.Type == xmlquery.ElementNode:
				walk(c, inDiv || c.Data == "div")
			}
		}
	}
	walk(body, false)
	return tei.NormalizeSpace(b.String())
}

// Abstracts returns the text of every abstract.
func (e *Extractor) Abstracts(doc *tei.Document) []string { return allTexts(doc, abstractExpr) }
