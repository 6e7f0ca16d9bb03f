// Package assemble combines extracted fields and rendered pages into the
// search documents of one source document.
package assemble

import (
	"errors"
	"strconv"

	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/fields"
	"github.com/tei-tools/tei2search/internal/render"
	"github.com/tei-tools/tei2search/internal/search"
)

// ErrMissingID rejects a document without an identifier. No partial output
// is produced for it.
var ErrMissingID = errors.New("assemble: document has no identifier")

// Fields that are not read from the document header.
const (
	TranscriptedText = "transcripted_text"
	EditedText       = "edited_text"
	GNDs             = "gnds"
)

// Page and side record fields.
const (
	ArticleID             = "article_id"
	ArticleTitle          = "article_title"
	PageNumber            = "page_number"
	Language              = fields.Language
	ImageURL              = "image_url"
	Entities              = "entities"
	AnnotationIDs         = "annotation_ids"
	PageNotes             = "page_notes"
	PageNotesIDs          = "page_notes_ids"
	PageDates             = "page_dates"
	PageDatesIDs          = "page_dates_ids"
	PageWorks             = "page_works"
	PageWorksIDs          = "page_works_ids"
	PageAllAnnotationIDs  = "page_all_annotation_ids"
	PageNotesAbstracts    = "page_notes_abstracts"
	PageNotesAbstractsIDs = "page_notes_abstracts_ids"
	NoteText              = "note"
	EntityName            = "entity_name"
	EntityType            = "entitytype"
)

// Options gates what is emitted.
type Options struct {
	// Fields is the whitelist of article fields. id and doctype are always
	// set.
	Fields        []string
	IndexPages    bool
	IndexEntities bool
	IndexNotes    bool
	JoinHyphens   bool
	// IDs generates the abstract annotation ids; nil means random UUIDs.
	IDs annotation.IDGenerator
}

// Input is everything known about one source document.
type Input struct {
	Fields    fields.Set
	Rendered  *render.Document
	Abstracts []string
	Notes     []fields.Note
	Entities  []fields.Entity
}

// Result holds the records of one document in output order.
type Result struct {
	Article  search.Document
	Pages    []search.Document
	Notes    []search.Document
	Entities []search.Document
}

// All returns article, pages, notes and entities in that order.
func (r *Result) All() []search.Document {
	out := make([]search.Document, 0, 1+len(r.Pages)+len(r.Notes)+len(r.Entities))
	out = append(out, r.Article)
	out = append(out, r.Pages...)
	out = append(out, r.Notes...)
	return append(out, r.Entities...)
}

type Assembler struct {
	opts Options
}

func New(opts Options) *Assembler {
	if opts.IDs == nil {
		opts.IDs = annotation.UUIDGenerator{}
	}
	return &Assembler{opts: opts}
}

// Assemble builds the records of one document. It fails with ErrMissingID
// when the field set carries no id.
func (a *Assembler) Assemble(in Input) (*Result, error) {
	id := in.Fields.String(fields.ID)
	if id == "" {
		return nil, ErrMissingID
	}
	res := &Result{Article: a.article(id, in)}
	if a.opts.IndexPages {
		res.Pages = a.pages(id, in)
	}
	if a.opts.IndexNotes {
		res.Notes = notes(id, in.Notes)
	}
	if a.opts.IndexEntities {
		res.Entities = entities(in.Entities)
	}
	return res, nil
}

func (a *Assembler) article(id string, in Input) search.Document {
	doc := search.NewDocument(id, search.DoctypeArticle)
	for _, name := range a.opts.Fields {
		switch name {
		case fields.ID, "doctype":
			continue
		case TranscriptedText:
			if in.Rendered != nil {
				doc.Set(name, in.Rendered.TranscriptionHTML())
			}
		case EditedText:
			if in.Rendered != nil {
				doc.Set(name, a.edited(in.Rendered.EditedHTML()))
			}
		case GNDs:
			if in.Rendered != nil {
				doc.SetList(name, in.Rendered.EntityIDs())
			}
		default:
			doc.SetValue(name, in.Fields[name])
		}
	}
	return doc
}

func (a *Assembler) edited(s string) string {
	if !a.opts.JoinHyphens {
		return s
	}
	return render.JoinHyphens(render.ConvertSoftHyphens(s))
}

// pages emits one record per page number 1..N. The content before the
// first page break has no record of its own.
func (a *Assembler) pages(id string, in Input) []search.Document {
	n, _ := strconv.Atoi(in.Fields.String(fields.NumberOfPages))
	if n <= 0 {
		return nil
	}
	title := in.Fields.String(fields.Title)
	language := in.Fields.String(fields.Language)
	images := in.Fields.Strings(fields.ImageURLs)

	out := make([]search.Document, 0, n)
	for i := 1; i <= n; i++ {
		doc := search.NewDocument(id+"_page"+strconv.Itoa(i), search.DoctypePage)
		doc.Set(ArticleID, id)
		doc.Set(ArticleTitle, title)
		doc.Set(PageNumber, strconv.Itoa(i))
		doc.Set(Language, language)
		if i <= len(images) {
			doc.Set(ImageURL, images[i-1])
		}

		var snap annotation.Snapshot
		if in.Rendered != nil {
			if p, ok := in.Rendered.Page(i); ok {
				doc.Set(TranscriptedText, p.Transcription.HTML)
				doc.Set(EditedText, a.edited(p.Edited.HTML))
				snap = p.Annotations()
			}
		}
		doc.SetList(Entities, annotation.Values(snap.Entities))
		doc.SetList(AnnotationIDs, annotation.IDs(snap.Entities))
		doc.SetList(PageNotes, annotation.Values(snap.Notes))
		doc.SetList(PageNotesIDs, annotation.IDs(snap.Notes))
		doc.SetList(PageDates, annotation.Values(snap.Dates))
		doc.SetList(PageDatesIDs, annotation.IDs(snap.Dates))
		doc.SetList(PageWorks, annotation.Values(snap.Works))
		doc.SetList(PageWorksIDs, annotation.IDs(snap.Works))

		all := snap.AllIDs
		if len(in.Abstracts) > 0 {
			abstractID := a.opts.IDs.NewID()
			doc.SetList(PageNotesAbstracts, in.Abstracts)
			doc.SetList(PageNotesAbstractsIDs, []string{abstractID})
			all = append([]string{abstractID}, all...)
		}
		doc.SetList(PageAllAnnotationIDs, all)
		out = append(out, doc)
	}
	return out
}

func notes(id string, in []fields.Note) []search.Document {
	seen := make(map[string]bool)
	var out []search.Document
	for _, n := range in {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		doc := search.NewDocument(n.ID, search.DoctypeNote)
		doc.Set(ArticleID, id)
		doc.Set(NoteText, n.Text)
		out = append(out, doc)
	}
	return out
}

func entities(in []fields.Entity) []search.Document {
	seen := make(map[string]bool)
	var out []search.Document
	for _, e := range in {
		if e.GND == "" || seen[e.GND] {
			continue
		}
		seen[e.GND] = true
		doc := search.NewDocument(e.GND, search.DoctypeEntity)
		doc.Set(EntityName, e.Name)
		doc.Set(EntityType, e.Type)
		out = append(out, doc)
	}
	return out
}
