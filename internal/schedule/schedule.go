// Package schedule runs background syncs on a cron expression. Background
// runs only fetch; they never drive the live page.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Runner is the sync entry point driven by the scheduler.
type Runner interface {
	RunSync(ctx context.Context, preferLiveDOM bool) types.SyncResult
	InProgress() bool
}

// Scheduler triggers fetch-only syncs on a schedule.
type Scheduler struct {
	runner Runner
	spec   string
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.RWMutex
	entryID cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler for the given cron expression.
func New(runner Runner, spec string, logger *slog.Logger) *Scheduler {
	l := logger.With("component", "schedule")
	return &Scheduler{
		runner: runner,
		spec:   spec,
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{l})),
			cron.WithLogger(cronLogger{l}),
		),
		logger: l,
	}
}

// Start registers the job and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.spec, err)
	}
	s.entryID = id
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started", "schedule", s.spec, "next_run", s.cron.Entry(id).Next)

	done := s.ctx.Done()
	go func() {
		<-done
		s.Stop()
	}()
	return nil
}

// Stop stops the cron loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow performs one fetch-only sync immediately.
func (s *Scheduler) RunNow(ctx context.Context) types.SyncResult {
	return s.runner.RunSync(ctx, false)
}

// NextRun returns the next scheduled time, or nil when stopped.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return nil
	}
	t := s.cron.Entry(s.entryID).Next
	return &t
}

// tick is a no-op while a sync is active.
func (s *Scheduler) tick() {
	if s.runner.InProgress() {
		s.logger.Info("scheduled sync skipped, a run is in progress")
		return
	}

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	res := s.runner.RunSync(ctx, false)
	s.logger.Info("scheduled sync finished",
		"run_id", res.RunID,
		"outcome", res.Outcome,
		"imported", res.HighlightsImported,
	)
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
