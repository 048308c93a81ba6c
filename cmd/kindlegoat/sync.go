package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/orchestrator"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

var (
	syncFetchOnly  bool
	syncDryRun     bool
	syncRegion     string
	syncCookies    string
	syncOutput     string
	syncFormat     string
	syncHeadless   bool
	syncJSONResult bool
)

// syncCmd creates the "sync" subcommand.
func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one highlight sync",
		Long: `Run one sync. By default the live page is driven first and the fetch
strategies are used as fallbacks; --fetch-only skips the live page.

Ctrl+C requests a cooperative stop after the current book; press it again
to abort immediately. A stopped run submits nothing.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}

	cmd.Flags().BoolVar(&syncFetchOnly, "fetch-only", false, "skip the live page and only fetch")
	cmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "extract and log, but submit nothing")
	cmd.Flags().StringVar(&syncRegion, "region", "", "notebook region (com, co.uk, de, ...)")
	cmd.Flags().StringVar(&syncCookies, "cookies", "", "cookies file (JSON export or Netscape cookies.txt)")
	cmd.Flags().StringVarP(&syncOutput, "output", "o", "", "output file for file backends")
	cmd.Flags().StringVarP(&syncFormat, "format", "f", "", "submit backend: api, mongodb, json, jsonl, csv")
	cmd.Flags().BoolVar(&syncHeadless, "headless", false, "run the browser headless")
	cmd.Flags().BoolVar(&syncJSONResult, "json", false, "print the sync result as JSON")

	return cmd
}

func applySyncOverrides(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if syncRegion != "" {
			cfg.Source.Region = syncRegion
		}
		if syncCookies != "" {
			cfg.Fetcher.CookiesFile = syncCookies
		}
		if syncOutput != "" {
			cfg.Submit.OutputPath = syncOutput
		}
		if syncFormat != "" {
			cfg.Submit.Type = syncFormat
		}
		if syncDryRun {
			cfg.Submit.DryRun = true
		}
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = syncHeadless
		}
		if syncFetchOnly {
			cfg.Sync.PreferLiveDOM = false
		}
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applySyncOverrides(cmd))
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopOnSignal(ctx, a.orchestrator, cancel)

	logger.Info("starting sync",
		"region", cfg.Source.Region,
		"prefer_live_dom", cfg.Sync.PreferLiveDOM,
		"submit", cfg.Submit.Type,
		"dry_run", cfg.Submit.DryRun,
	)
	res := a.orchestrator.RunSync(ctx, cfg.Sync.PreferLiveDOM)

	if syncJSONResult {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(res)
	}

	if res.Outcome == types.OutcomeFailed {
		return fmt.Errorf("sync failed: %s", res.Error)
	}
	return nil
}

// stopOnSignal asks the orchestrator to stop on the first signal and
// cancels ctx on the second.
func stopOnSignal(ctx context.Context, o *orchestrator.Orchestrator, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nreceived %s, stopping after the current book (again to abort)\n", sig)
			o.Stop()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
}

func printResult(res types.SyncResult) {
	switch res.Outcome {
	case types.OutcomeSucceeded:
		fmt.Printf("\n✅ Sync complete in %s\n", res.Duration.Round(time.Millisecond))
		fmt.Printf("   Strategy:   %s\n", orDash(res.Strategy))
		fmt.Printf("   Books:      %d\n", res.BooksProcessed)
		fmt.Printf("   Highlights: %d imported, %d skipped\n", res.HighlightsImported, res.HighlightsSkipped)
	case types.OutcomeCancelled:
		fmt.Printf("\n⏹  Sync cancelled after %s, nothing submitted\n", res.Duration.Round(time.Millisecond))
	default:
		fmt.Printf("\n❌ Sync failed: %s\n", res.Error)
		if res.Error == types.CodeLoginRequired {
			fmt.Println("   Sign in to the notebook in the browser profile, or export fresh cookies")
			fmt.Println("   and pass them with --cookies.")
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
