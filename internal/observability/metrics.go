package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Metrics tracks operational metrics for sync runs.
type Metrics struct {
	// Run metrics
	SyncRuns      atomic.Int64
	SyncSucceeded atomic.Int64
	SyncFailed    atomic.Int64
	SyncCancelled atomic.Int64
	SyncRejected  atomic.Int64
	SyncActive    atomic.Int32
	LastRunUnix   atomic.Int64

	// Acquisition metrics
	StrategyAttempts  atomic.Int64
	StrategyFallbacks atomic.Int64

	// Output metrics
	BooksProcessed     atomic.Int64
	HighlightsImported atomic.Int64
	HighlightsSkipped  atomic.Int64

	server *http.Server
	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// Record folds the outcome of one run into the counters.
func (m *Metrics) Record(res types.SyncResult) {
	switch res.Outcome {
	case types.OutcomeRejected:
		m.SyncRejected.Add(1)
		return
	case types.OutcomeSucceeded:
		m.SyncSucceeded.Add(1)
	case types.OutcomeCancelled:
		m.SyncCancelled.Add(1)
	default:
		m.SyncFailed.Add(1)
	}
	m.SyncRuns.Add(1)
	m.LastRunUnix.Store(time.Now().Unix())
	m.BooksProcessed.Add(int64(res.BooksProcessed))
	m.HighlightsImported.Add(int64(res.HighlightsImported))
	m.HighlightsSkipped.Add(int64(res.HighlightsSkipped))
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"kindlegoat_sync_runs_total", "Total sync runs started", "counter", m.SyncRuns.Load()},
		{"kindlegoat_sync_succeeded_total", "Total sync runs that succeeded", "counter", m.SyncSucceeded.Load()},
		{"kindlegoat_sync_failed_total", "Total sync runs that failed", "counter", m.SyncFailed.Load()},
		{"kindlegoat_sync_cancelled_total", "Total sync runs cancelled by the user", "counter", m.SyncCancelled.Load()},
		{"kindlegoat_sync_rejected_total", "Total sync requests rejected while a run was active", "counter", m.SyncRejected.Load()},
		{"kindlegoat_sync_active", "Whether a sync run is in progress", "gauge", int64(m.SyncActive.Load())},
		{"kindlegoat_last_run_timestamp_seconds", "Unix time the last run finished", "gauge", m.LastRunUnix.Load()},
		{"kindlegoat_strategy_attempts_total", "Total acquisition strategy attempts", "counter", m.StrategyAttempts.Load()},
		{"kindlegoat_strategy_fallbacks_total", "Total fallbacks to a later strategy", "counter", m.StrategyFallbacks.Load()},
		{"kindlegoat_books_processed_total", "Total books submitted", "counter", m.BooksProcessed.Load()},
		{"kindlegoat_highlights_imported_total", "Total highlights imported", "counter", m.HighlightsImported.Load()},
		{"kindlegoat_highlights_skipped_total", "Total highlights already present", "counter", m.HighlightsSkipped.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"sync_runs":           m.SyncRuns.Load(),
		"sync_succeeded":      m.SyncSucceeded.Load(),
		"sync_failed":         m.SyncFailed.Load(),
		"sync_cancelled":      m.SyncCancelled.Load(),
		"sync_rejected":       m.SyncRejected.Load(),
		"strategy_attempts":   m.StrategyAttempts.Load(),
		"strategy_fallbacks":  m.StrategyFallbacks.Load(),
		"books_processed":     m.BooksProcessed.Load(),
		"highlights_imported": m.HighlightsImported.Load(),
		"highlights_skipped":  m.HighlightsSkipped.Load(),
	}
}
