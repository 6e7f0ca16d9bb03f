// Package fields reads the bibliographic metadata of a TEI document into
// flat search fields. Every reader is side-effect free and returns
// whitespace-normalized values; absent values are empty, never nil
// placeholders.
package fields

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/tei-tools/tei2search/internal/tei"
)

// Field names of the article record.
const (
	ID                = "id"
	Title             = "title"
	ShortTitle        = "short_title"
	Author            = "author"
	Editor            = "editor"
	Publisher         = "publisher"
	PublicationPlace  = "publication_place"
	VolumePart        = "volume_part"
	Project           = "project"
	Marker            = "marker"
	Institution       = "institution"
	Country           = "country"
	Repository        = "repository"
	Settlement        = "settlement"
	DestinationPlace  = "destination_place"
	OriginPlace       = "origin_place"
	Recipient         = "recipient"
	FreeKeyword       = "free_keyword"
	GNDKeyword        = "gnd_keyword"
	ImageIDs          = "image_ids"
	ImageURLs         = "image_urls"
	Language          = "language"
	License           = "license"
	LicenseLink       = "license_link"
	NumberOfPages     = "number_of_pages"
	OriginDate        = "origin_date"
	PublicationDate   = "publication_date"
	Reference         = "reference"
	Response          = "response"
	RelatedItems      = "related_items"
	ScriptSource      = "script_source"
	Shelfmark         = "shelfmark"
	SourceDescription = "source_description"
	Writer            = "writer"
	ArticleOwnGNDs    = "article_own_gnds"
	PageFrom          = "page_from"
	PageTo            = "page_to"
	ExistencePeriod   = "existence_period"
	Fulltext          = "fulltext"
)

// Set maps a field name to a string or a []string. Empty values are never
// stored.
type Set map[string]any

// Put stores v under name unless it is empty.
func (s Set) Put(name, v string) {
	if v == "" {
		return
	}
	s[name] = v
}

// PutList stores the non-empty items of vs under name unless none remain.
func (s Set) PutList(name string, vs []string) {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return
	}
	s[name] = out
}

// Has reports whether a value is stored under name.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// String returns a string field. A list field is joined with ", ".
func (s Set) String(name string) string {
	switch v := s[name].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	}
	return ""
}

// Strings returns a field as a list; a string field becomes a one-element
// list.
func (s Set) Strings(name string) []string {
	switch v := s[name].(type) {
	case string:
		return []string{v}
	case []string:
		return slices.Clone(v)
	}
	return nil
}

// Names returns the stored field names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Config tunes the readers.
type Config struct {
	// DetailURL builds links to other documents. "{id}" is replaced by the
	// document id, e.g. "https://example.org/detail/{id}".
	DetailURL string
	// Languages maps xml:lang codes to display names. Unmapped codes are
	// returned as they are.
	Languages map[string]string
	// ReverseAuthorNames turns "Surname, Forename" author parts into
	// "Forename, Surname".
	ReverseAuthorNames bool
	// EntityPrefix marks authority references; defaults to "gnd:".
	EntityPrefix string
}

// Extractor reads fields from parsed documents. It holds no per-document
// state and is safe for concurrent use.
type Extractor struct {
	cfg Config
}

func New(cfg Config) *Extractor {
	if cfg.EntityPrefix == "" {
		cfg.EntityPrefix = tei.DefaultEntityPrefix
	}
	return &Extractor{cfg: cfg}
}

// DetailURL returns the public URL of document id, or "" when no template
// is configured.
func (e *Extractor) DetailURL(id string) string {
	if e.cfg.DetailURL == "" || id == "" {
		return ""
	}
	return strings.ReplaceAll(e.cfg.DetailURL, "{id}", id)
}

// Extract runs every string and list reader and collects the results.
func (e *Extractor) Extract(doc *tei.Document) Set {
	s := Set{}
	s.Put(ID, e.ID(doc))
	s.Put(Title, e.Title(doc))
	s.Put(ShortTitle, e.ShortTitle(doc))
	if a := e.Author(doc); len(a) == 1 {
		s.Put(Author, a[0])
	} else {
		s.PutList(Author, a)
	}
	s.PutList(Editor, e.Editor(doc))
	s.Put(Publisher, e.Publisher(doc))
	s.Put(PublicationPlace, e.PublicationPlace(doc))
	s.Put(VolumePart, e.VolumePart(doc))
	s.Put(Project, e.Project(doc))
	s.Put(Marker, e.Marker(doc))
	s.Put(Institution, e.Institution(doc))
	s.Put(Country, e.Country(doc))
	s.Put(Repository, e.Repository(doc))
	s.Put(Settlement, e.Settlement(doc))
	s.Put(DestinationPlace, e.DestinationPlace(doc))
	s.Put(OriginPlace, e.OriginPlace(doc))
	s.Put(Recipient, e.Recipient(doc))
	s.PutList(FreeKeyword, e.FreeKeywords(doc))
	s.PutList(GNDKeyword, e.GNDKeywords(doc))
	s.PutList(ImageIDs, e.ImageIDs(doc))
	s.PutList(ImageURLs, e.ImageURLs(doc))
	s.Put(Language, e.Language(doc))
	s.Put(License, e.License(doc))
	s.Put(LicenseLink, e.LicenseLink(doc))
	if n := e.NumberOfPages(doc); n > 0 {
		s.Put(NumberOfPages, strconv.Itoa(n))
	}
	s.Put(OriginDate, e.OriginDate(doc))
	s.Put(PublicationDate, e.PublicationDate(doc))
	s.Put(Reference, e.Reference(doc))
	s.Put(Response, e.Response(doc))
	s.PutList(RelatedItems, e.RelatedItems(doc))
	s.Put(ScriptSource, e.ScriptSource(doc))
	s.Put(Shelfmark, e.Shelfmark(doc))
	s.Put(SourceDescription, e.SourceDescription(doc))
	s.PutList(Writer, e.Writers(doc))
	s.PutList(ArticleOwnGNDs, e.ArticleOwnGNDs(doc))
	s.Put(PageFrom, e.PageFrom(doc))
	s.Put(PageTo, e.PageTo(doc))
	s.Put(ExistencePeriod, e.ExistencePeriod(doc))
	s.Put(Fulltext, e.Fulltext(doc))
	return s
}
