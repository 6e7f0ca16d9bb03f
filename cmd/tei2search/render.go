package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tei-tools/tei2search/internal/pipeline"
	"github.com/tei-tools/tei2search/internal/search"
)

type renderOutput struct {
	ID        string            `json:"id"`
	Documents []search.Document `json:"documents"`
	Pages     []renderedPage    `json:"pages,omitempty"`
}

type renderedPage struct {
	Number        int    `json:"number"`
	Transcription string `json:"transcription"`
	Edited        string `json:"edited"`
}

var withPages bool

var renderCmd = &cobra.Command{
	Use:   "render <file.xml>",
	Short: "Print the search records of one TEI file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		out, err := pipeline.NewProcessor(cfg, nil).Process(content, args[0])
		if err != nil {
			return err
		}

		result := renderOutput{ID: out.ID, Documents: out.Result.All()}
		if withPages {
			for _, p := range out.Rendered.Pages {
				result.Pages = append(result.Pages, renderedPage{
					Number:        p.Number,
					Transcription: p.Transcription.HTML,
					Edited:        p.Edited.HTML,
				})
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().BoolVar(&withPages, "pages", false, "Include the rendered HTML of every page")
	rootCmd.AddCommand(renderCmd)
}
