package search

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// titleFields are tried in order for the searchable title column.
var titleFields = []string{"title", "article_title", "entity_name", "short_title"}

// reference fields hold ids, links or counters and are kept out of the
// full-text column.
func isReference(name string) bool {
	switch name {
	case "entities", "gnds", "article_own_gnds", "page_number", "number_of_pages",
		"page_from", "page_to", "license_link", "image_url", "image_urls", "article_id":
		return true
	}
	return strings.HasSuffix(name, "_ids")
}

func documentTitle(d Document) string {
	for _, f := range titleFields {
		if t := d.String(f); t != "" {
			return PlainText(t)
		}
	}
	return ""
}

// documentContent joins the plain text of all descriptive fields in a
// stable order.
func documentContent(d Document) string {
	names := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		if !isReference(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	var parts []string
	for _, k := range names {
		for _, v := range d.Strings(k) {
			if t := PlainText(v); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

func pageNumber(d Document) int {
	n, err := strconv.Atoi(d.String("page_number"))
	if err != nil {
		return 0
	}
	return n
}

// PlainText strips markup from rendered HTML and collapses whitespace.
// Values without markup are only normalized.
func PlainText(s string) string {
	if strings.ContainsRune(s, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("br, div, li, p, section, ul").AfterHtml(" ")
			s = doc.Find("body").Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
