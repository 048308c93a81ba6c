package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/IshaanNene/KindleGoat/internal/acquire"
	"github.com/IshaanNene/KindleGoat/internal/browser"
	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
	"github.com/IshaanNene/KindleGoat/internal/fetcher"
	"github.com/IshaanNene/KindleGoat/internal/notify"
	"github.com/IshaanNene/KindleGoat/internal/observability"
	"github.com/IshaanNene/KindleGoat/internal/orchestrator"
	"github.com/IshaanNene/KindleGoat/internal/pipeline"
	"github.com/IshaanNene/KindleGoat/internal/submit"
)

// app holds the wired components shared by the sync and schedule commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	fetcher      *fetcher.HTTPFetcher
	live         *liveSource
	submitter    submit.Submitter
	metrics      *observability.Metrics
	orchestrator *orchestrator.Orchestrator
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	sub, err := submit.New(cfg, logger)
	if err != nil {
		httpFetcher.Close()
		return nil, fmt.Errorf("create submitter: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		fetcher:   httpFetcher,
		live:      &liveSource{cfg: cfg, logger: logger},
		submitter: sub,
		metrics:   observability.NewMetrics(logger),
	}

	extractor := extract.NewExtractor(logger)
	deps := orchestrator.Deps{
		PerASIN:   acquire.NewPerASIN(httpFetcher, extractor, cfg, logger),
		Legacy:    acquire.NewLegacy(httpFetcher, extractor, cfg, logger),
		Pipeline:  pipeline.Default(logger),
		Submitter: sub,
		Notifier:  notify.Multi{notify.NewLog(logger), notify.NewConsole(os.Stdout)},
		Metrics:   a.metrics,
	}
	if cfg.Browser.Enabled {
		deps.LiveDOM = acquire.NewLiveDOM(a.live.Page, extractor, cfg, logger)
	}
	if timeout := cfg.Sync.ReachabilityCheck; timeout > 0 {
		libraryURL := cfg.Source.LibraryURL()
		deps.Reachable = func(ctx context.Context) error {
			return httpFetcher.Reachable(ctx, libraryURL, timeout)
		}
	}
	a.orchestrator = orchestrator.New(deps, logger)

	if cfg.Metrics.Enabled {
		a.metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}
	return a, nil
}

// Close releases every component the app opened.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.metrics.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics shutdown failed", "error", err)
	}
	if err := a.submitter.Close(); err != nil {
		a.logger.Error("submitter close failed", "error", err)
	}
	if err := a.live.Close(); err != nil {
		a.logger.Warn("browser close failed", "error", err)
	}
	if err := a.fetcher.Close(); err != nil {
		a.logger.Warn("fetcher close failed", "error", err)
	}
}

// liveSource starts the browser on first use, so fetch-only runs never
// launch Chrome.
type liveSource struct {
	cfg    *config.Config
	logger *slog.Logger

	once    sync.Once
	session *browser.Session
	err     error
}

func (l *liveSource) Page(ctx context.Context) (acquire.LivePage, error) {
	l.once.Do(func() {
		l.session, l.err = browser.NewSession(l.cfg, l.logger)
	})
	if l.err != nil {
		return nil, l.err
	}
	page, err := l.session.Page(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (l *liveSource) Close() error {
	if l.session == nil {
		return nil
	}
	return l.session.Close()
}
