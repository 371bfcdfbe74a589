// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/verdict/internal/app"
	"github.com/okian/verdict/internal/domain/scope"
	"github.com/okian/verdict/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Forecast(ctx context.Context, req service.Request) (*service.Report, error)
	RepRollup(ctx context.Context, req service.Request) (*service.RepReport, error)
}

// Server wires HTTP routes for the forecast API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	forecastHandler *ForecastHandler
	repsHandler     *RepsHandler
	logger          logger.Logger
}

// NewServer creates a new API server with all handlers. A nil log discards
// request logs.
func NewServer(deps Dependencies, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		forecastHandler: NewForecastHandler(deps),
		repsHandler:     NewRepsHandler(deps),
		logger:          log.Named("http"),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	wrap := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return RequestIDMiddleware(MetricsMiddleware(h, endpoint), s.logger)
	}
	mux.HandleFunc("/healthz", wrap(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", wrap(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/forecast", wrap(s.forecastHandler.HandleGetForecast, "forecast"))
	mux.HandleFunc("/v1/forecast/reps", wrap(s.repsHandler.HandleGetReps, "forecast_reps"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingPeriod),
		errors.Is(err, service.ErrInvalidCaller),
		errors.Is(err, scope.ErrUnknownRole),
		errors.Is(err, scope.ErrMissingOrg):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// writeCallerError reports a malformed caller identity.
func writeCallerError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrMissingCaller) {
		writeError(w, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", err)
}

// signalHeader lists a report's zeroing signals for clients that only look at
// headers.
func signalHeader(w http.ResponseWriter, sig service.Signals) {
	switch {
	case sig.ScopeEmpty:
		w.Header().Set("X-Forecast-Signal", "scope_empty")
	case sig.PeriodNotFound:
		w.Header().Set("X-Forecast-Signal", "period_not_found")
	}
}
