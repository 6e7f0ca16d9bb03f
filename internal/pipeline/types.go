package pipeline

import "fmt"

// Stages reported in DocumentError and the failures log.
const (
	StageRead       = "read"
	StageParse      = "parse"
	StageSplit      = "split"
	StageRender     = "render"
	StageAssemble   = "assemble"
	StageEnrich     = "enrich"
	StageStore      = "store"
	StageIndex      = "index"
	StageLiterature = "literature"
)

// Status represents the progress of an ingest run.
type Status struct {
	Stage        string // "listing", "processing", "literature", "done"
	Total        int
	Done         int
	Skipped      int
	Errors       int
	FailuresPath string
}

// DocumentError reports the failure of one source document. It never
// aborts a run; the runner records it and moves on.
type DocumentError struct {
	Stage  string
	Source string
	Err    error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Source, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }
