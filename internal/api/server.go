package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/config"
	"github.com/JakeFAU/apify-webhook-monitor/internal/metrics"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
)

const requestTimeout = 60 * time.Second

// Monitor is the slice of *monitor.Monitor the server drives.
type Monitor interface {
	TryStart(runID string) (string, error)
	Stop(runID string) bool
	StopAll() []string
	Status() monitor.Report
	Lookup(runID string) (monitor.RunSnapshot, bool)
}

// Clock abstracts time for uptime reporting.
type Clock interface {
	Now() time.Time
}

// Server wires HTTP handlers to the run monitor.
type Server struct {
	router  chi.Router
	monitor Monitor
	clock   Clock
	logger  *zap.Logger
	started time.Time
}

// StartRequest is the body accepted by the start endpoints.
type StartRequest struct {
	RunID string `json:"runId"`
}

// StartResponse reports whether a new loop was launched.
type StartResponse struct {
	RunID   string `json:"runId"`
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopAllResponse lists the runs that were signalled.
type StopAllResponse struct {
	Stopped []string `json:"stopped"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(mon Monitor, clock Clock, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		monitor: mon,
		clock:   clock,
		logger:  logger.Named("api"),
		started: clock.Now(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/v1/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/", s.listRuns)
			r.Delete("/", s.stopAll)
			r.Get("/{run_id}", s.getRun)
			r.Delete("/{run_id}", s.stopRun)
		})

		r.Post("/start-monitor", s.legacyStart)
		r.Get("/monitor-status", s.legacyStatus)
		r.Post("/stop-monitor", s.legacyStop)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"activeMonitors": s.monitor.Status().ActiveRuns,
		"uptime":         s.clock.Now().Sub(s.started).Seconds(),
	})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := decodeRunID(w, r)
	if !ok {
		return
	}
	resp, status := s.start(runID)
	writeJSON(w, status, resp)
}

// start launches a loop and picks the status code for the outcome.
func (s *Server) start(runID string) (StartResponse, int) {
	_, err := s.monitor.TryStart(runID)
	switch {
	case err == nil:
		return StartResponse{RunID: runID, Started: true, Message: "monitoring started"}, http.StatusAccepted
	case errors.Is(err, monitor.ErrAlreadyMonitoring):
		return StartResponse{RunID: runID, Message: "monitor already running"}, http.StatusOK
	default:
		return StartResponse{RunID: runID, Message: "monitor is shutting down"}, http.StatusServiceUnavailable
	}
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Status())
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.monitor.Lookup(chi.URLParam(r, "run_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not monitored")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) stopRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if !s.monitor.Stop(runID) {
		writeError(w, http.StatusNotFound, "run not monitored")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": runID, "stopped": true})
}

func (s *Server) stopAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StopAllResponse{Stopped: s.monitor.StopAll()})
}

func (s *Server) legacyStart(w http.ResponseWriter, r *http.Request) {
	runID, ok := decodeRunID(w, r)
	if !ok {
		return
	}
	resp, status := s.start(runID)
	if status == http.StatusServiceUnavailable {
		writeError(w, status, resp.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": resp.Message,
		"runId":   runID,
	})
}

func (s *Server) legacyStatus(w http.ResponseWriter, _ *http.Request) {
	report := s.monitor.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"activeMonitors": report.ActiveRuns,
		"monitors":       report.Runs,
	})
}

func (s *Server) legacyStop(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !s.monitor.Stop(req.RunID) {
		writeError(w, http.StatusNotFound, "Monitor not found for this run ID")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Monitor stopped for run: " + req.RunID,
	})
}

func decodeRunID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return "", false
	}
	if req.RunID == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return "", false
	}
	if !monitor.ValidRunID(req.RunID) {
		writeError(w, http.StatusBadRequest, "Run ID must be alphanumeric")
		return "", false
	}
	return req.RunID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
