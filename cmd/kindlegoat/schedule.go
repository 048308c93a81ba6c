package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/KindleGoat/internal/api"
	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/schedule"
)

var (
	scheduleCron    string
	scheduleNow     bool
	scheduleAPIPort int
)

// scheduleCmd creates the "schedule" subcommand.
func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run fetch-only syncs on a cron schedule",
		Long: `Run in the foreground and trigger a fetch-only sync on every tick of the
cron expression. A tick that arrives while a sync is still running is skipped.`,
		Args: cobra.NoArgs,
		RunE: runSchedule,
	}

	cmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression (default from config)")
	cmd.Flags().BoolVar(&scheduleNow, "now", false, "also run one sync immediately")
	cmd.Flags().IntVar(&scheduleAPIPort, "api-port", 0, "serve the control API on this port")

	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) {
		cfg.Schedule.Enabled = true
		if scheduleCron != "" {
			cfg.Schedule.Cron = scheduleCron
		}
		if scheduleAPIPort > 0 {
			cfg.API.Enabled = true
			cfg.API.Port = scheduleAPIPort
		}
	})
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := schedule.New(a.orchestrator, cfg.Schedule.Cron, logger)
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	if cfg.API.Enabled {
		srv := api.NewServer(ctx, cfg.API.Port, a.orchestrator, a.metrics.Snapshot, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("API server shutdown failed", "error", err)
			}
		}()
	}

	if next := s.NextRun(); next != nil {
		fmt.Printf("Scheduled %q, next run at %s. Ctrl+C to exit.\n", cfg.Schedule.Cron, next.Format("2006-01-02 15:04:05"))
	}
	if scheduleNow {
		printResult(s.RunNow(ctx))
	}

	<-ctx.Done()
	a.orchestrator.Stop()
	return nil
}
