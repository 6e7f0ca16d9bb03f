package main

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tei-tools/tei2search/internal/config"
	"github.com/tei-tools/tei2search/internal/enrich"
	"github.com/tei-tools/tei2search/internal/literature"
	"github.com/tei-tools/tei2search/internal/pipeline"
	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/sitemap"
	"github.com/tei-tools/tei2search/internal/storage"
)

var forceProcess bool
var showProgress bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process the TEI directory into the search index",
	Long: `Process every TEI file of tei_dir and the bibliography files of
literature_dir. Unchanged sources are reused from the export in output_dir
unless --force is given. Failing documents are written to the failures log
and do not stop the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		indexer, err := search.NewSQLiteIndexer(cfg.IndexPath)
		if err != nil {
			return err
		}
		store := storage.NewFSStorage(cfg.OutputDir)

		runner := &pipeline.Runner{
			Processor:    pipeline.NewProcessor(cfg, nil),
			Literature:   literature.New(cfg.LiteratureElements),
			Indexer:      indexer,
			Storage:      store,
			Logger:       logger,
			FailuresPath: cfg.FailuresLog,
			Workers:      cfg.Workers,
			ForceProcess: forceProcess,
		}
		if cfg.IndexEntities && cfg.GND.API != "" {
			gnd := enrich.NewGNDClient(cfg.GND.API, cfg.GND.CacheDir, cfg.GND.Rate)
			gnd.Logger = logger
			runner.Enricher = gnd
		}
		if cfg.DetailURL != "" {
			runner.SitemapGenerator = &sitemap.SitemapGenerator{
				Store:     store,
				SiteURL:   cfg.SiteURL(),
				DetailURL: cfg.ArticleURL,
				Logger:    logger,
			}
		}
		if showProgress {
			attachProgress(runner, cfg)
		}

		status, err := runner.Run(ctx, cfg.TEIDir, cfg.LiteratureDir)
		if err != nil {
			return err
		}
		summary := fmt.Sprintf("%d documents, %d reused, %d failed", status.Total, status.Skipped, status.Errors)
		if status.Errors > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("%s (see %s)", summary, status.FailuresPath))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("%s", summary))
		}
		return nil
	},
}

// attachProgress draws a bar once the runner knows the number of sources.
func attachProgress(runner *pipeline.Runner, cfg *config.Config) {
	var mu sync.Mutex
	var bar *progressbar.ProgressBar
	runner.Progress = func(s pipeline.Status) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = newProgressBar(s.Total, "Processing "+cfg.TEIDir)
		}
		// Callbacks may arrive out of order from the workers.
		_ = bar.Add(1)
	}
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString("%s", description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func init() {
	ingestCmd.Flags().BoolVar(&forceProcess, "force", false, "Process every source even if unchanged since the last run")
	ingestCmd.Flags().BoolVar(&showProgress, "progress", true, "Show a progress bar")
	rootCmd.AddCommand(ingestCmd)
}
