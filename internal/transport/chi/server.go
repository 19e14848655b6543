// Package chi is the HTTP transport: request decoding, sentinel-to-status
// error mapping, and route registration.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/domain"
	healthuc "github.com/dhruv1108git/pulse/internal/usecase/health"
	relayuc "github.com/dhruv1108git/pulse/internal/usecase/relay"
	safetyuc "github.com/dhruv1108git/pulse/internal/usecase/safety"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the relay and insights API.
type Server struct {
	relay         *relayuc.Service
	safety        *safetyuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	relay *relayuc.Service,
	safety *safetyuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		relay:  relay,
		safety: safety,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		storeUnavailableHandler,
		sentinelHandler(domain.ErrInvalidSubmission, http.StatusBadRequest, "invalid_submission"),
		sentinelHandler(domain.ErrQueryNotFound, http.StatusNotFound, "query_not_found"),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
	}
	return s
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/relay/query", s.SubmitRelayQuery)
	r.Get("/api/relay/check", s.CheckRelayQuery)
	r.Get("/api/insights/safety", s.SafetyReport)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// submitRequest is the relay submission payload.
type submitRequest struct {
	QueryID      string    `json:"query_id"`
	Kind         string    `json:"kind"`
	Text         string    `json:"text"`
	OriginDevice string    `json:"origin_device"`
	RelayDevice  string    `json:"relay_device"`
	Location     *geoPoint `json:"location,omitempty"`
	SOSType      string    `json:"sos_type,omitempty"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// queryResponse is the wire form of a relay query record.
type queryResponse struct {
	QueryID      string    `json:"query_id"`
	Kind         string    `json:"kind"`
	Text         string    `json:"text,omitempty"`
	OriginDevice string    `json:"origin_device"`
	RelayDevice  string    `json:"relay_device,omitempty"`
	Location     *geoPoint `json:"location,omitempty"`
	State        string    `json:"state"`
	Result       string    `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  *string   `json:"completed_at,omitempty"`
}

// SubmitRelayQuery handles POST /api/relay/query.
func (s *Server) SubmitRelayQuery(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	sub := domain.Submission{
		QueryID:      req.QueryID,
		Kind:         domain.QueryKind(req.Kind),
		Text:         req.Text,
		OriginDevice: req.OriginDevice,
		RelayDevice:  req.RelayDevice,
		SOSType:      req.SOSType,
	}
	if req.Location != nil {
		sub.Location = &domain.GeoPoint{Lat: req.Location.Lat, Lon: req.Location.Lon}
	}

	rec, err := s.relay.HandleRelaySubmission(r.Context(), sub)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryToResponse(rec))
}

// CheckRelayQuery handles GET /api/relay/check.
func (s *Server) CheckRelayQuery(w http.ResponseWriter, r *http.Request) {
	queryID := r.URL.Query().Get("query_id")
	if queryID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query_id is required")
		return
	}

	rec, err := s.relay.Status(r.Context(), queryID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryToResponse(rec))
}

// safetyResponse is the wire form of an area safety report.
type safetyResponse struct {
	SafetyScore      int            `json:"safety_score"`
	CountsByType     map[string]int `json:"counts_by_type"`
	CountsBySeverity map[string]int `json:"counts_by_severity"`
	HighRiskTypes    []string       `json:"high_risk_types"`
	RadiusKm         float64        `json:"radius_km"`
	WindowHours      float64        `json:"window_hours"`
}

// SafetyReport handles GET /api/insights/safety.
func (s *Server) SafetyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var loc *domain.GeoPoint
	if q.Get("lat") != "" || q.Get("lon") != "" {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
		if latErr != nil || lonErr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "lat and lon must both be valid numbers")
			return
		}
		loc = &domain.GeoPoint{Lat: lat, Lon: lon}
	}

	radiusKm, err := parseOptionalFloat(q.Get("radius_km"), safetyuc.DefaultRadiusKm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "radius_km must be a number")
		return
	}
	windowHours, err := parseOptionalFloat(
		q.Get("window_hours"), safetyuc.DefaultWindow.Hours(),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "window_hours must be a number")
		return
	}
	window := time.Duration(windowHours * float64(time.Hour))

	report, err := s.safety.Report(r.Context(), loc, radiusKm, window)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, safetyResponse{
		SafetyScore:      report.Score,
		CountsByType:     report.CountsByType,
		CountsBySeverity: report.CountsBySeverity,
		HighRiskTypes:    report.HighRiskTypes,
		RadiusKm:         radiusKm,
		WindowHours:      window.Hours(),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func queryToResponse(q domain.RelayQuery) queryResponse {
	resp := queryResponse{
		QueryID:      q.QueryID,
		Kind:         string(q.Kind),
		Text:         q.Text,
		OriginDevice: q.OriginDevice,
		RelayDevice:  q.RelayDevice,
		State:        string(q.State),
		Result:       q.Result,
		Error:        q.Error,
		CreatedAt:    q.CreatedAt,
	}
	if q.Location != nil {
		resp.Location = &geoPoint{Lat: q.Location.Lat, Lon: q.Location.Lon}
	}
	if !q.CompletedAt.IsZero() {
		ts := q.CompletedAt.UTC().Format(time.RFC3339Nano)
		resp.CompletedAt = &ts
	}
	return resp
}

func parseOptionalFloat(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return v, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidSubmission,
		domain.ErrQueryNotFound,
		domain.ErrStoreUnavailable,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// storeUnavailableHandler maps store outages to 503 with a retry hint.
func storeUnavailableHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		return false
	}
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusServiceUnavailable, "store_unavailable", msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
