// Package api exposes a small HTTP control surface for a long-running
// process: status, a manual sync trigger and the stop signal.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/orchestrator"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// maxHistory bounds the number of finished runs kept for /api/runs.
const maxHistory = 20

// Controller is the part of the orchestrator the API drives.
type Controller interface {
	Start(ctx context.Context, preferLiveDOM bool) (<-chan types.SyncResult, error)
	Stop()
	InProgress() bool
	Status() orchestrator.Status
}

// Server provides a REST API for external control of syncs.
type Server struct {
	mux    *http.ServeMux
	port   int
	ctrl   Controller
	stats  func() map[string]int64
	ctx    context.Context
	server *http.Server
	logger *slog.Logger

	historyMu sync.RWMutex
	history   []types.SyncResult
	wg        sync.WaitGroup
}

// NewServer creates a new API server. Syncs it triggers run under ctx.
func NewServer(ctx context.Context, port int, ctrl Controller, stats func() map[string]int64, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		port:   port,
		ctrl:   ctrl,
		stats:  stats,
		ctx:    ctx,
		logger: logger.With("component", "api_server"),
	}

	s.registerRoutes()
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler { return s.mux }

// Start starts the API server in the background.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.port)
	s.server = &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
}

// Shutdown stops the server and waits for syncs it started.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Status()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"state":       st.State.String(),
		"in_progress": st.InProgress,
		"last_result": st.LastResult,
	})
}

// handleSync starts a run in the background. ?fetch_only=true skips the
// live page. The run slot is claimed before responding, so 202 always means
// the run is underway.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	prefer := r.URL.Query().Get("fetch_only") != "true"

	done, err := s.ctrl.Start(s.ctx, prefer)
	if errors.Is(err, types.ErrSyncInProgress) {
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": types.CodeSyncInProgress})
		return
	}
	if err != nil {
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.record(<-done)
	}()

	s.jsonResponse(w, http.StatusAccepted, map[string]any{"status": "started", "prefer_live_dom": prefer})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.InProgress() {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	s.ctrl.Stop()
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	runs := make([]types.SyncResult, len(s.history))
	for i, res := range s.history {
		runs[len(s.history)-1-i] = res
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.jsonResponse(w, http.StatusOK, map[string]int64{})
		return
	}
	s.jsonResponse(w, http.StatusOK, s.stats())
}

// record keeps the result of a run started through the API, oldest first.
func (s *Server) record(res types.SyncResult) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append(s.history, res)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}
