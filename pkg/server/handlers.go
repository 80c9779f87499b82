package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/0xmhha/agentpulse/pkg/activity"
	"github.com/0xmhha/agentpulse/pkg/cost"
	"github.com/0xmhha/agentpulse/pkg/health"
	"github.com/0xmhha/agentpulse/pkg/services"
)

type errorBody struct {
	Error string `json:"error"`
}

type systemBody struct {
	Current health.Snapshot   `json:"current"`
	History []health.Snapshot `json:"history"`
	Host    health.HostInfo   `json:"host"`
}

type servicesBody struct {
	Services []services.ServiceInfo `json:"services"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	days := s.windowDays(r)

	summary, err := s.deps.Costs.Summary(r.Context(), days)
	if err != nil {
		s.internalError(w, r, err, cost.Empty(days))
		return
	}
	s.writeJSON(w, http.StatusOK, summary.Rounded())
}

// windowDays reads ?days. Missing or invalid values use the default; large
// values are capped.
func (s *Server) windowDays(r *http.Request) int {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		return s.config.DefaultWindowDays
	}
	return min(days, MaxWindowDays)
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	h := s.deps.Health
	s.writeJSON(w, http.StatusOK, systemBody{
		Current: h.Current(),
		History: h.History(),
		Host:    h.Host(),
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Heatmap.Compute(r.Context())
	if err != nil {
		s.internalError(w, r, err, activity.EmptyHeatmap())
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	rw, err := s.deps.Rates.Compute(r.Context())
	if err != nil {
		s.internalError(w, r, err, activity.RateWindow{Timestamp: s.now()})
		return
	}
	s.writeJSON(w, http.StatusOK, rw)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, servicesBody{Services: s.deps.Services.List(r.Context())})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	result, err := s.deps.Services.Restart(r.Context(), name)
	if errors.Is(err, services.ErrNotAllowed) {
		s.logger.Warn("restart rejected", "service", name)
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		s.internalError(w, r, err, errorBody{Error: "restart failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// internalError logs err and answers 500 with a default-shaped body so
// clients can render an empty view.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, body any) {
	if cost.IsCanceled(err) && r.Context().Err() != nil {
		s.logger.Debug("request canceled", "path", r.URL.Path)
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	s.writeJSON(w, http.StatusInternalServerError, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
