package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tei-tools/tei2search/internal/pipeline"
	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/storage"
	"github.com/tei-tools/tei2search/internal/web"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		addr := cfg.Listen
		if listenAddr != "" {
			addr = listenAddr
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		var searcher web.Searcher
		s, err := search.NewSQLiteSearcher(cfg.IndexPath)
		if err != nil {
			// The API still renders uploads without an index.
			logger.Warn("search index unavailable", "path", cfg.IndexPath, "error", err)
		} else {
			defer func() { _ = s.Close() }()
			searcher = s
		}

		server := web.NewServer(cfg, logger, searcher, pipeline.NewProcessor(cfg, nil), storage.NewFSStorage(cfg.OutputDir))
		if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "HTTP bind address; overrides listen from the config")
	rootCmd.AddCommand(serveCmd)
}
