package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/KindleGoat/internal/acquire"
	"github.com/IshaanNene/KindleGoat/internal/orchestrator"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeController struct {
	mu       sync.Mutex
	prefs    []bool
	busy     atomic.Bool
	stopped  atomic.Int32
	rejected atomic.Int32
}

// Start claims busy like the orchestrator's run slot; a trigger that finds
// it taken is rejected without calling RunSync.
func (f *fakeController) Start(_ context.Context, prefer bool) (<-chan types.SyncResult, error) {
	if f.busy.Load() {
		f.rejected.Add(1)
		return nil, types.ErrSyncInProgress
	}
	f.mu.Lock()
	f.prefs = append(f.prefs, prefer)
	n := len(f.prefs)
	f.mu.Unlock()

	done := make(chan types.SyncResult, 1)
	done <- types.SyncResult{RunID: string(rune('a' + n - 1)), Success: true, Outcome: types.OutcomeSucceeded}
	return done, nil
}

func (f *fakeController) Stop() { f.stopped.Add(1) }

func (f *fakeController) InProgress() bool { return f.busy.Load() }

func (f *fakeController) Status() orchestrator.Status {
	return orchestrator.Status{State: orchestrator.StateIdle}
}

func newTestServer(ctrl Controller) *Server {
	return NewServer(context.Background(), 0, ctrl, func() map[string]int64 {
		return map[string]int64{"sync_runs": 3}
	}, testLogger)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(&fakeController{})

	rec := do(t, s, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, s, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, false, body["in_progress"])
}

func TestSyncTriggerAndHistory(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/sync?fetch_only=true")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/sync")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, s.Shutdown(context.Background()))

	ctrl.mu.Lock()
	assert.ElementsMatch(t, []bool{false, true}, ctrl.prefs)
	ctrl.mu.Unlock()

	rec = do(t, s, http.MethodGet, "/api/runs")
	var runs []types.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
}

func TestSyncConflictWhileRunning(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.busy.Store(true)
	s := newTestServer(ctrl)

	rec := do(t, s, http.MethodPost, "/api/sync")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), types.CodeSyncInProgress)
	assert.Equal(t, int32(1), ctrl.rejected.Load())
	assert.Empty(t, ctrl.prefs)

	rec = do(t, s, http.MethodPost, "/api/stop")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), ctrl.stopped.Load())
}

func TestSyncAgainstOrchestrator(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := &slowStrategy{entered: entered, release: release}
	o := orchestrator.New(orchestrator.Deps{
		PerASIN:   slow,
		Submitter: nopSubmitter{},
		Notifier:  nopNotifier{},
	}, testLogger)
	s := newTestServer(o)

	rec := do(t, s, http.MethodPost, "/api/sync?fetch_only=true")
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-entered

	rec = do(t, s, http.MethodPost, "/api/sync?fetch_only=true")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	require.NoError(t, s.Shutdown(context.Background()))

	rec = do(t, s, http.MethodGet, "/api/runs")
	var runs []types.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, types.OutcomeSucceeded, runs[0].Outcome)
	assert.Equal(t, int64(1), o.Metrics().SyncRejected.Load())
}

type slowStrategy struct {
	entered chan struct{}
	release chan struct{}
}

func (s *slowStrategy) Name() string { return acquire.NamePerASIN }

func (s *slowStrategy) Acquire(context.Context, acquire.Stopper) (*types.ExtractionResult, error) {
	close(s.entered)
	<-s.release
	return &types.ExtractionResult{Strategy: acquire.NamePerASIN}, nil
}

type nopSubmitter struct{}

func (nopSubmitter) Name() string { return "nop" }
func (nopSubmitter) Submit(context.Context, []types.Book) (types.SubmitResult, error) {
	return types.SubmitResult{}, nil
}
func (nopSubmitter) Close() error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, types.Notification) error { return nil }

func TestStopWhenIdle(t *testing.T) {
	ctrl := &fakeController{}
	rec := do(t, newTestServer(ctrl), http.MethodPost, "/api/stop")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, ctrl.stopped.Load())
}

func TestHistoryBounded(t *testing.T) {
	s := newTestServer(&fakeController{})
	for i := 0; i < maxHistory+5; i++ {
		s.record(types.SyncResult{RunID: time.Duration(i).String()})
	}
	assert.Len(t, s.history, maxHistory)
	assert.Equal(t, time.Duration(5).String(), s.history[0].RunID)
}

func TestStats(t *testing.T) {
	rec := do(t, newTestServer(&fakeController{}), http.MethodGet, "/api/stats")
	assert.JSONEq(t, `{"sync_runs":3}`, rec.Body.String())
}
