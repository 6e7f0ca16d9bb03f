package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tei-tools/tei2search/internal/literature"
	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/sitemap"
	"github.com/tei-tools/tei2search/internal/storage"
	"github.com/tei-tools/tei2search/internal/tei"
)

// Enricher adds external data to records before they are stored.
type Enricher interface {
	Apply(ctx context.Context, docs []search.Document) error
}

type Runner struct {
	Processor        *Processor
	Literature       *literature.Extractor
	Enricher         Enricher
	Indexer          search.Indexer
	Storage          *storage.FSStorage
	SitemapGenerator *sitemap.SitemapGenerator
	Logger           *slog.Logger
	FailuresPath     string
	Workers          int
	ForceProcess     bool
	// Progress is called after every source document.
	Progress func(Status)

	mu       sync.Mutex
	status   Status
	failures []string
}

// Run processes every TEI file of teiDir, then the bibliography files of
// literatureDir. Per-document failures are recorded and never abort the
// run; only setup errors and cancellation are returned.
func (r *Runner) Run(ctx context.Context, teiDir, literatureDir string) (Status, error) {
	if r.Processor == nil {
		return Status{}, errors.New("pipeline runner missing dependencies")
	}

	r.mu.Lock()
	r.status = Status{Stage: "listing", FailuresPath: r.FailuresPath}
	r.failures = nil
	r.mu.Unlock()

	// Create the failure log up front so users can tail it during processing.
	if r.FailuresPath != "" {
		_ = os.MkdirAll(filepath.Dir(r.FailuresPath), 0o755)
		_ = os.WriteFile(r.FailuresPath, nil, 0o644)
	}

	sources, err := ListSources(teiDir)
	if err != nil {
		return r.Status(), err
	}

	r.mu.Lock()
	r.status.Stage = "processing"
	r.status.Total = len(sources)
	r.mu.Unlock()

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range sources {
		if gctx.Err() != nil {
			break
		}
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			r.processFile(gctx, path)
			r.mu.Lock()
			r.status.Done++
			s := r.status
			r.mu.Unlock()
			if r.Progress != nil {
				r.Progress(s)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.closeIndexer()
		return r.Status(), err
	}
	if err := ctx.Err(); err != nil {
		r.closeIndexer()
		return r.Status(), err
	}

	if literatureDir != "" && r.Literature != nil {
		r.mu.Lock()
		r.status.Stage = "literature"
		r.mu.Unlock()
		if err := r.indexLiterature(ctx, literatureDir); err != nil {
			r.closeIndexer()
			return r.Status(), err
		}
	}

	if r.Indexer != nil {
		if err := r.Indexer.Close(); err != nil {
			return r.Status(), fmt.Errorf("close indexer: %w", err)
		}
	}

	if r.SitemapGenerator != nil {
		if err := r.SitemapGenerator.Generate(ctx); err != nil && r.Logger != nil {
			// Non-fatal: don't fail the entire ingest for a sitemap error.
			r.Logger.Error("sitemap generation failed", "error", err)
		}
	}

	r.mu.Lock()
	r.status.Stage = "done"
	total := len(r.failures)
	r.mu.Unlock()
	if r.Logger != nil {
		s := r.Status()
		if total > 0 {
			r.Logger.Warn("ingest completed with failures", "count", total)
		}
		r.Logger.Info("ingest done", "total", s.Total, "skipped", s.Skipped, "errors", s.Errors)
	}
	return r.Status(), nil
}

// Status returns a snapshot of the current progress.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Failures returns the messages recorded so far.
func (r *Runner) Failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

func (r *Runner) closeIndexer() {
	if r.Indexer != nil {
		_ = r.Indexer.Close()
	}
}

func (r *Runner) processFile(ctx context.Context, path string) {
	if r.Logger != nil {
		r.Logger.Debug("processing", "path", path)
	}
	content, err := readSource(path)
	if err != nil {
		r.recordFailure(StageRead, path, err)
		return
	}
	stem := storage.Stem(path)
	sum := storage.Checksum(content)

	if !r.ForceProcess && r.Storage != nil && r.Storage.CheckCache(stem, sum) {
		docs, err := r.Storage.ReadDocuments(stem)
		if err == nil {
			if r.Logger != nil {
				r.Logger.Debug("reusing unchanged document", "path", path)
			}
			r.mu.Lock()
			r.status.Skipped++
			r.mu.Unlock()
			r.index(ctx, path, docs)
			return
		}
		if r.Logger != nil {
			r.Logger.Warn("cached export unreadable, processing again", "path", path, "error", err)
		}
	}

	out, err := r.Processor.Process(content, path)
	if err != nil {
		var de *DocumentError
		if errors.As(err, &de) {
			cause := de.Err
			var pe *tei.ParseError
			if errors.As(cause, &pe) {
				cause = pe.Err
			}
			r.recordFailure(de.Stage, path, cause)
			return
		}
		r.recordFailure(StageParse, path, err)
		return
	}

	if r.Enricher != nil && len(out.Result.Entities) > 0 {
		if err := r.Enricher.Apply(ctx, out.Result.Entities); err != nil {
			r.recordFailure(StageEnrich, path, err)
			return
		}
	}
	docs := out.Result.All()

	if r.Storage != nil {
		if err := r.store(ctx, stem, sum, out, docs); err != nil {
			r.recordFailure(StageStore, path, err)
			return
		}
	}
	r.index(ctx, path, docs)
}

func (r *Runner) store(ctx context.Context, stem, sum string, out *Output, docs []search.Document) error {
	for _, p := range out.Rendered.Pages {
		if err := r.Storage.WritePage(ctx, out.ID, p.Number, "transcription", []byte(p.Transcription.HTML)); err != nil {
			return err
		}
		if err := r.Storage.WritePage(ctx, out.ID, p.Number, "edited", []byte(p.Edited.HTML)); err != nil {
			return err
		}
	}
	if err := r.Storage.WriteDocuments(ctx, stem, docs); err != nil {
		return err
	}
	return r.Storage.WriteCache(ctx, stem, sum)
}

func (r *Runner) index(ctx context.Context, path string, docs []search.Document) {
	if r.Indexer == nil || len(docs) == 0 {
		return
	}
	if err := r.Indexer.IndexDocuments(ctx, docs...); err != nil {
		r.recordFailure(StageIndex, path, err)
	}
}

func (r *Runner) indexLiterature(ctx context.Context, dir string) error {
	sources, err := ListSources(dir)
	if err != nil {
		return err
	}
	for _, path := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := readSource(path)
		if err != nil {
			r.recordFailure(StageLiterature, path, err)
			continue
		}
		doc, err := tei.ParseBytes(content, path)
		if err != nil {
			r.recordFailure(StageLiterature, path, err)
			continue
		}
		docs := r.Literature.Documents(doc)
		if r.Logger != nil {
			r.Logger.Info("indexing literature", "path", path, "count", len(docs))
		}
		r.index(ctx, path, docs)
	}
	return nil
}

// ListSources returns the XML files, plain or gzipped, directly inside
// dir in name order.
func ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list sources in %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isSource(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Runner) recordFailure(stage string, path string, err error) {
	message := strings.TrimSpace(fmt.Sprintf("%s %s: %v", stage, path, err))
	r.mu.Lock()
	r.failures = append(r.failures, message)
	r.status.Errors++
	failPath := r.status.FailuresPath
	// Append to the failure log immediately so users can tail it.
	if failPath != "" {
		f, ferr := os.OpenFile(failPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr == nil {
			_, _ = fmt.Fprintln(f, message)
			_ = f.Close()
		}
	}
	r.mu.Unlock()

	if r.Logger != nil {
		r.Logger.Warn("pipeline failure", "stage", stage, "path", path, "error", err)
	}
}
