// Package httpapi exposes the operator surface: status and position reads,
// manual trading commands, task toggles, health, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"odte-trader/internal/controller"
	"odte-trader/internal/logger"
	"odte-trader/internal/sched"
	"odte-trader/internal/types"
)

type Config struct {
	Addr           string
	MetricsEnabled bool
}

type Server struct {
	cfg   Config
	ctrl  *controller.Controller
	sched *sched.Scheduler
	srv   *http.Server
}

func New(cfg Config, ctrl *controller.Controller, s *sched.Scheduler) *Server {
	srv := &Server{cfg: cfg, ctrl: ctrl, sched: s}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /v1/status", srv.handleStatus)
	mux.HandleFunc("GET /v1/positions", srv.handlePositions)
	mux.HandleFunc("GET /v1/signals/recent", srv.handleRecentSignals)
	mux.HandleFunc("GET /v1/scheduler", srv.handleScheduler)
	mux.HandleFunc("POST /v1/commands/pause", srv.handlePause)
	mux.HandleFunc("POST /v1/commands/resume", srv.handleResume)
	mux.HandleFunc("POST /v1/commands/emergency-stop", srv.handleEmergencyStop)
	mux.HandleFunc("POST /v1/commands/clear-emergency-stop", srv.handleClearEmergencyStop)
	mux.HandleFunc("POST /v1/commands/master", srv.handleMaster)
	mux.HandleFunc("POST /v1/commands/risk", srv.handleRisk)
	mux.HandleFunc("POST /v1/commands/capabilities", srv.handleCapabilities)
	mux.HandleFunc("POST /v1/positions/{id}/close", srv.handleClosePosition)
	mux.HandleFunc("POST /v1/tasks/{name}/enable", srv.handleTaskToggle(true))
	mux.HandleFunc("POST /v1/tasks/{name}/disable", srv.handleTaskToggle(false))
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	srv.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           withAccessLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// withAccessLog logs every request with its outcome. The skip-aware logger
// variants keep source attribution on the serving call, not this wrapper.
func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case rec.code >= http.StatusInternalServerError:
			logger.ErrorWithErrSkip(r.Context(), 1, "Request failed",
				errors.New(http.StatusText(rec.code)), args...)
		case rec.code >= http.StatusBadRequest:
			logger.WarnSkip(r.Context(), 1, "Request rejected", args...)
		default:
			logger.InfoSkip(r.Context(), 1, "Request served", args...)
		}
	})
}

// Start serves in the background until Stop or a listener error.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "HTTP server failed", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"positions": s.ctrl.Positions()})
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": s.ctrl.RecentSignals(limit)})
}

func (s *Server) handleScheduler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status(10))
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	writeCommandResult(w, s.ctrl.Pause())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	writeCommandResult(w, s.ctrl.Resume())
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	logger.Risk(r.Context(), "EMERGENCY_STOP_REQUESTED", "source", "http", "remote", r.RemoteAddr)
	s.ctrl.EmergencyStop()
	writeCommandResult(w, nil)
}

func (s *Server) handleClearEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	writeCommandResult(w, s.ctrl.ClearEmergencyStop())
}

func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.ctrl.SetMasterSwitch(body.Enabled)
	writeCommandResult(w, nil)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var p types.RiskParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeCommandResult(w, s.ctrl.UpdateRiskParams(p))
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	var f types.CapabilityFlags
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.ctrl.UpdateCapabilities(f)
	writeCommandResult(w, nil)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	writeCommandResult(w, s.ctrl.ManualClosePosition(r.PathValue("id")))
}

func (s *Server) handleTaskToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		var err error
		if enable {
			err = s.sched.EnableTask(name)
		} else {
			err = s.sched.DisableTask(name)
		}
		writeCommandResult(w, err)
	}
}

func writeCommandResult(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
		return
	}
	writeError(w, statusFor(err), err)
}

// statusFor maps the command error taxonomy onto HTTP codes.
func statusFor(err error) int {
	var nf *types.NotFoundError
	var st *types.StateTransitionError
	var cfg *types.ConfigurationError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &st):
		return http.StatusConflict
	case errors.As(err, &cfg):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
