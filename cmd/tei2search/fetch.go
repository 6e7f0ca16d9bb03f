package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tei-tools/tei2search/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download TEI and bibliography files from the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		repo := cfg.Repository
		if repo.API == "" {
			return fmt.Errorf("config repository.api is not set")
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		f := fetcher.New(repo.API, repo.Token, repo.Branch, cfg.TEIDir, repo.Rate)
		f.Logger = logger
		f.Client.Logger = logger

		skip, err := f.LoadSkipList(ctx, repo.InvalidList)
		if err != nil {
			return fmt.Errorf("load invalid list: %w", err)
		}
		if len(skip) > 0 {
			logger.Info("skipping invalid files", "count", len(skip))
		}

		paths, err := f.FetchAll(ctx, repo.Path, cfg.TEIDir, skip)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", repo.Path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d TEI files into %s\n", len(paths), cfg.TEIDir)

		if repo.LiteraturePath == "" || cfg.LiteratureDir == "" {
			return nil
		}
		paths, err = f.FetchAll(ctx, repo.LiteraturePath, cfg.LiteratureDir, nil)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", repo.LiteraturePath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d bibliography files into %s\n", len(paths), cfg.LiteratureDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
