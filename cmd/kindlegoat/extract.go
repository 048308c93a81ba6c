package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

var (
	extractLibrary bool
	extractASIN    string
)

// extractCmd creates the "extract" subcommand for saved notebook pages.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file.html]",
		Short: "Extract highlights from a saved notebook page",
		Long: `Run the extractor on a notebook page saved from the browser and print the
book and its highlights as JSON. With --library, print the books listed in
the library sidebar instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().BoolVar(&extractLibrary, "library", false, "list the books in the library sidebar")
	cmd.Flags().StringVar(&extractASIN, "asin", "", "ASIN to use when the page does not carry one")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger := setupLogger(config.LoggingConfig{Level: "warn"})

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}

	out, err := extractPage(string(data), logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func extractPage(markup string, logger *slog.Logger) (any, error) {
	extractor := extract.NewExtractor(logger)

	if extractLibrary {
		return extractor.ParseLibraryHTML(markup)
	}

	var fallback *types.BookMeta
	if extractASIN != "" {
		if !types.ValidASIN(extractASIN) {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidASIN, extractASIN)
		}
		fallback = &types.BookMeta{ASIN: extractASIN}
	}
	meta, highlights, err := extractor.ExtractHTML(markup, fallback)
	if err != nil {
		return nil, err
	}
	return types.NewBook(meta, highlights), nil
}
