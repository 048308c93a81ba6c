// Package orchestrator runs one sync at a time: it chains the acquisition
// strategies, cleans the result, submits it once and reports one terminal
// status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/KindleGoat/internal/acquire"
	"github.com/IshaanNene/KindleGoat/internal/notify"
	"github.com/IshaanNene/KindleGoat/internal/observability"
	"github.com/IshaanNene/KindleGoat/internal/pipeline"
	"github.com/IshaanNene/KindleGoat/internal/submit"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// State is the lifecycle state of the most recent run.
type State int32

const (
	StateIdle      State = 0
	StateRunning   State = 1
	StateSucceeded State = 2
	StateCancelled State = 3
	StateFailed    State = 4
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Deps are the collaborators a sync run uses. LiveDOM and Legacy may be
// nil; PerASIN, Submitter and Notifier are required.
type Deps struct {
	LiveDOM acquire.Strategy
	PerASIN acquire.Strategy
	Legacy  acquire.Strategy

	// Reachable, when set, is checked before any strategy runs.
	Reachable func(ctx context.Context) error

	Pipeline  *pipeline.Pipeline
	Submitter submit.Submitter
	Notifier  notify.Notifier
	Metrics   *observability.Metrics
}

// Status is the public view of the orchestrator.
type Status struct {
	State      State             `json:"state"`
	InProgress bool              `json:"in_progress"`
	LastResult *types.SyncResult `json:"last_result,omitempty"`
}

// Orchestrator sequences one sync at a time.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	// ctl orders run entry, exit and Stop so a stop lands on exactly one run.
	ctl     sync.Mutex
	running atomic.Bool
	stop    atomic.Bool
	state   atomic.Int32

	mu   sync.RWMutex
	last *types.SyncResult
}

// New creates an orchestrator. A nil pipeline is replaced with the default
// one and nil metrics with a private instance.
func New(deps Deps, logger *slog.Logger) *Orchestrator {
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.Default(logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(logger)
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger.With("component", "orchestrator"),
	}
}

// Stop requests a cooperative stop of the active run. It has no effect when
// no run is active.
func (o *Orchestrator) Stop() {
	o.ctl.Lock()
	defer o.ctl.Unlock()
	if o.running.Load() {
		o.logger.Info("stop requested")
		o.stop.Store(true)
	}
}

// acquireRun marks a run active. It fails when one already is.
func (o *Orchestrator) acquireRun() bool {
	o.ctl.Lock()
	defer o.ctl.Unlock()
	if !o.running.CompareAndSwap(false, true) {
		return false
	}
	o.stop.Store(false)
	return true
}

// releaseRun clears the active flag and any stop aimed at the finished run.
func (o *Orchestrator) releaseRun() {
	o.ctl.Lock()
	defer o.ctl.Unlock()
	o.stop.Store(false)
	o.running.Store(false)
}

// InProgress reports whether a run is active.
func (o *Orchestrator) InProgress() bool {
	return o.running.Load()
}

// Status returns the current state and the result of the last finished run.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Status{
		State:      State(o.state.Load()),
		InProgress: o.running.Load(),
		LastResult: o.last,
	}
}

// Metrics returns the run counters.
func (o *Orchestrator) Metrics() *observability.Metrics {
	return o.deps.Metrics
}

// strategies returns the chain for a run. A background run only fetches.
func (o *Orchestrator) strategies(preferLiveDOM bool) []acquire.Strategy {
	var chain []acquire.Strategy
	if preferLiveDOM {
		for _, s := range []acquire.Strategy{o.deps.LiveDOM, o.deps.PerASIN, o.deps.Legacy} {
			if s != nil {
				chain = append(chain, s)
			}
		}
		return chain
	}
	if o.deps.PerASIN != nil {
		chain = append(chain, o.deps.PerASIN)
	}
	return chain
}

// RunSync performs one sync. A call made while another run is active is
// rejected without side effects.
func (o *Orchestrator) RunSync(ctx context.Context, preferLiveDOM bool) types.SyncResult {
	if !o.acquireRun() {
		return o.reject()
	}
	return o.runAcquired(ctx, preferLiveDOM)
}

// Start claims the run slot synchronously and performs the sync in the
// background. It returns ErrSyncInProgress, starting nothing, when a run is
// already active. The channel receives the result once.
func (o *Orchestrator) Start(ctx context.Context, preferLiveDOM bool) (<-chan types.SyncResult, error) {
	if !o.acquireRun() {
		o.reject()
		return nil, types.ErrSyncInProgress
	}
	done := make(chan types.SyncResult, 1)
	go func() {
		done <- o.runAcquired(ctx, preferLiveDOM)
	}()
	return done, nil
}

func (o *Orchestrator) reject() types.SyncResult {
	o.logger.Info("sync rejected, another run is active")
	res := types.SyncResult{
		Outcome: types.OutcomeRejected,
		Error:   types.CodeSyncInProgress,
	}
	o.deps.Metrics.Record(res)
	return res
}

// runAcquired performs a run whose slot acquireRun already claimed.
func (o *Orchestrator) runAcquired(ctx context.Context, preferLiveDOM bool) types.SyncResult {
	defer o.releaseRun()

	o.state.Store(int32(StateRunning))
	o.deps.Metrics.SyncActive.Store(1)
	defer o.deps.Metrics.SyncActive.Store(0)

	r := &run{
		o:      o,
		id:     uuid.NewString(),
		start:  time.Now(),
		prefer: preferLiveDOM,
	}
	r.logger = o.logger.With("run_id", r.id)
	r.logger.Info("sync started", "prefer_live_dom", preferLiveDOM)

	res, status := r.execute(ctx)
	res.RunID = r.id
	res.Duration = time.Since(r.start)

	o.finish(ctx, res, status)
	return res
}

func (o *Orchestrator) finish(ctx context.Context, res types.SyncResult, status types.Status) {
	switch res.Outcome {
	case types.OutcomeSucceeded:
		o.state.Store(int32(StateSucceeded))
	case types.OutcomeCancelled:
		o.state.Store(int32(StateCancelled))
	default:
		o.state.Store(int32(StateFailed))
	}

	o.mu.Lock()
	o.last = &res
	o.mu.Unlock()
	o.deps.Metrics.Record(res)

	o.logger.Info("sync finished",
		"run_id", res.RunID,
		"outcome", res.Outcome,
		"strategy", res.Strategy,
		"books", res.BooksProcessed,
		"imported", res.HighlightsImported,
		"skipped", res.HighlightsSkipped,
		"error", res.Error,
		"duration", res.Duration,
	)

	n := types.Notification{
		RunID:              res.RunID,
		Status:             status,
		BooksProcessed:     res.BooksProcessed,
		HighlightsImported: res.HighlightsImported,
		HighlightsSkipped:  res.HighlightsSkipped,
		Message:            res.Error,
	}
	// The run context may already be cancelled; the notification still goes out.
	if err := o.deps.Notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		o.logger.Error("notification failed", "run_id", res.RunID, "error", err)
	}
}

// run holds the per-attempt values of one RunSync call.
type run struct {
	o      *Orchestrator
	id     string
	start  time.Time
	prefer bool
	logger *slog.Logger
}

func (r *run) stopped() bool { return r.o.stop.Load() }

func (r *run) execute(ctx context.Context) (types.SyncResult, types.Status) {
	deps := r.o.deps

	if deps.Reachable != nil {
		if err := deps.Reachable(ctx); err != nil {
			if ctx.Err() != nil {
				return cancelled("")
			}
			r.logger.Warn("source unreachable", "error", err)
			return failed(err)
		}
	}

	chain := r.o.strategies(r.prefer)
	if len(chain) == 0 {
		return failed(fmt.Errorf("no acquisition strategy configured"))
	}

	var (
		chosen  *types.ExtractionResult
		ranOK   bool
		lastErr error
	)
	for i, s := range chain {
		if r.stopped() || ctx.Err() != nil {
			return cancelled(s.Name())
		}
		if i > 0 {
			deps.Metrics.StrategyFallbacks.Add(1)
		}
		deps.Metrics.StrategyAttempts.Add(1)

		r.logger.Info("strategy started", "strategy", s.Name())
		res, err := s.Acquire(ctx, acquire.StopFunc(r.stopped))

		if (res != nil && res.Cancelled) || errors.Is(err, context.Canceled) || (err != nil && ctx.Err() != nil) {
			r.logger.Info("strategy cancelled", "strategy", s.Name())
			return cancelled(s.Name())
		}
		if err != nil {
			if errors.Is(err, types.ErrLoginRequired) || errors.Is(err, types.ErrNetworkUnavailable) {
				r.logger.Warn("strategy ended the run", "strategy", s.Name(), "error", err)
				out, status := failed(err)
				out.Strategy = s.Name()
				return out, status
			}
			r.logger.Warn("strategy failed, falling back", "strategy", s.Name(), "error", err)
			lastErr = err
			continue
		}

		ranOK = true
		if !res.Empty() {
			chosen = res
			break
		}
		r.logger.Info("strategy found no highlights", "strategy", s.Name())
	}

	if chosen == nil {
		if !ranOK && lastErr != nil {
			return failed(lastErr)
		}
		return types.SyncResult{Success: true, Outcome: types.OutcomeSucceeded}, types.StatusNoHighlights
	}

	books, err := deps.Pipeline.Run(chosen.Books)
	if err != nil {
		out, status := failed(err)
		out.Strategy = chosen.Strategy
		return out, status
	}
	if len(books) == 0 {
		return types.SyncResult{Success: true, Outcome: types.OutcomeSucceeded, Strategy: chosen.Strategy}, types.StatusNoHighlights
	}

	if r.stopped() {
		return cancelled(chosen.Strategy)
	}

	sub, err := deps.Submitter.Submit(ctx, books)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(chosen.Strategy)
		}
		out, status := failed(err)
		out.Strategy = chosen.Strategy
		return out, status
	}

	return types.SyncResult{
		Success:            true,
		Outcome:            types.OutcomeSucceeded,
		Strategy:           chosen.Strategy,
		BooksProcessed:     sub.BooksProcessed,
		HighlightsImported: sub.HighlightsImported,
		HighlightsSkipped:  sub.HighlightsSkipped,
	}, types.StatusSuccess
}

// cancelled reports a user stop. It is not a failure, so Success is set and
// Outcome tells it apart from a completed run.
func cancelled(strategy string) (types.SyncResult, types.Status) {
	return types.SyncResult{
		Success:  true,
		Outcome:  types.OutcomeCancelled,
		Strategy: strategy,
		Error:    types.CodeCancelled,
	}, types.StatusCancelled
}

func failed(err error) (types.SyncResult, types.Status) {
	status := types.StatusError
	if errors.Is(err, types.ErrLoginRequired) {
		status = types.StatusLoginRequired
	}
	return types.SyncResult{
		Outcome: types.OutcomeFailed,
		Error:   types.ErrorCode(err),
	}, status
}
