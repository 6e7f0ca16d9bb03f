package pipeline

import (
	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/assemble"
	"github.com/tei-tools/tei2search/internal/config"
	"github.com/tei-tools/tei2search/internal/fields"
	"github.com/tei-tools/tei2search/internal/pages"
	"github.com/tei-tools/tei2search/internal/render"
	"github.com/tei-tools/tei2search/internal/tei"
)

// Processor turns one TEI source into its search records. It holds no
// per-document state and is safe for concurrent use.
type Processor struct {
	Fields        *fields.Extractor
	Assembler     *assemble.Assembler
	Transcription *render.Engine
	Edited        *render.Engine
	IDs           annotation.IDGenerator
}

// Output is everything produced for one source.
type Output struct {
	ID       string
	Fields   fields.Set
	Rendered *render.Document
	Result   *assemble.Result
}

// NewProcessor wires a processor from the configuration. ids may be nil
// for random UUIDs.
func NewProcessor(cfg *config.Config, ids annotation.IDGenerator) *Processor {
	if ids == nil {
		ids = annotation.UUIDGenerator{}
	}
	return &Processor{
		Fields: fields.New(fields.Config{
			DetailURL:          cfg.DetailURL,
			Languages:          cfg.DocumentLanguages,
			ReverseAuthorNames: cfg.HandleAuthorName,
			EntityPrefix:       cfg.EntityPrefix,
		}),
		Assembler: assemble.New(assemble.Options{
			Fields:        cfg.Fields,
			IndexPages:    cfg.IndexPages,
			IndexEntities: cfg.IndexEntities,
			IndexNotes:    cfg.IndexNotes,
			JoinHyphens:   cfg.JoinHyphens,
			IDs:           ids,
		}),
		Transcription: render.NewTranscription(cfg.Renditions.Transcription),
		Edited:        render.NewEdited(cfg.Renditions.Edited, cfg.EntityPrefix),
		IDs:           ids,
	}
}

// Process parses, splits, renders, extracts and assembles one source.
// Failures come back as *DocumentError naming the stage.
func (p *Processor) Process(content []byte, source string) (*Output, error) {
	doc, err := tei.ParseBytes(content, source)
	if err != nil {
		return nil, &DocumentError{Stage: StageParse, Source: source, Err: err}
	}
	return p.ProcessDocument(doc, source)
}

// ProcessDocument runs the stages after parsing.
func (p *Processor) ProcessDocument(doc *tei.Document, source string) (*Output, error) {
	split, err := pages.Split(doc.Body())
	if err != nil {
		return nil, &DocumentError{Stage: StageSplit, Source: source, Err: err}
	}

	rendered, err := render.RenderDocument(split, p.Transcription, p.Edited, render.Options{
		IDs:      p.IDs,
		Graphics: p.Fields.Graphics(doc),
	})
	if err != nil {
		return nil, &DocumentError{Stage: StageRender, Source: source, Err: err}
	}

	set := p.Fields.Extract(doc)
	id := set.String(fields.ID)
	res, err := p.Assembler.Assemble(assemble.Input{
		Fields:    set,
		Rendered:  rendered,
		Abstracts: p.Fields.Abstracts(doc),
		Notes:     p.Fields.Notes(doc, id),
		Entities:  p.Fields.Entities(doc),
	})
	if err != nil {
		return nil, &DocumentError{Stage: StageAssemble, Source: source, Err: err}
	}

	return &Output{ID: id, Fields: set, Rendered: rendered, Result: res}, nil
}
