package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/domain"
	"github.com/dhruv1108git/pulse/internal/domain/scoring"
	"github.com/dhruv1108git/pulse/internal/metrics"
	healthuc "github.com/dhruv1108git/pulse/internal/usecase/health"
	relayuc "github.com/dhruv1108git/pulse/internal/usecase/relay"
	safetyuc "github.com/dhruv1108git/pulse/internal/usecase/safety"
)

func TestMain(m *testing.M) {
	metrics.RegisterRelayMetrics()
	os.Exit(m.Run())
}

// memQueryStore is an in-memory QueryStore with the same conditional
// semantics as the redis-backed repository.
type memQueryStore struct {
	mu      sync.Mutex
	queries map[string]domain.RelayQuery
	err     error
}

func newMemQueryStore() *memQueryStore {
	return &memQueryStore{queries: make(map[string]domain.RelayQuery)}
}

func (m *memQueryStore) TryInsertPending(
	_ context.Context, q domain.RelayQuery,
) (domain.RelayQuery, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.RelayQuery{}, false, m.err
	}
	if existing, ok := m.queries[q.QueryID]; ok {
		return existing, false, nil
	}
	m.queries[q.QueryID] = q
	return q, true, nil
}

func (m *memQueryStore) TransitionToProcessing(_ context.Context, queryID, relayDevice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[queryID]
	if !ok {
		return domain.ErrQueryNotFound
	}
	if q.State != domain.StatePending {
		return domain.ErrTransitionConflict
	}
	q.State = domain.StateProcessing
	q.RelayDevice = relayDevice
	m.queries[queryID] = q
	return nil
}

func (m *memQueryStore) CompleteWith(_ context.Context, queryID, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[queryID]
	if !ok {
		return domain.ErrQueryNotFound
	}
	if q.State.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	q.State = domain.StateCompleted
	q.Result = result
	q.CompletedAt = time.Now()
	m.queries[queryID] = q
	return nil
}

func (m *memQueryStore) FailWith(_ context.Context, queryID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[queryID]
	if !ok {
		return domain.ErrQueryNotFound
	}
	if q.State.Terminal() {
		return domain.ErrAlreadyTerminal
	}
	q.State = domain.StateFailed
	q.Error = message
	q.CompletedAt = time.Now()
	m.queries[queryID] = q
	return nil
}

func (m *memQueryStore) Get(_ context.Context, queryID string) (domain.RelayQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.RelayQuery{}, m.err
	}
	q, ok := m.queries[queryID]
	if !ok {
		return domain.RelayQuery{}, domain.ErrQueryNotFound
	}
	return q, nil
}

type stubSearcher struct {
	incidents []domain.Incident
}

func (s *stubSearcher) Search(context.Context, domain.QueryIntent, int) ([]domain.Incident, error) {
	return s.incidents, nil
}

type stubWriter struct{}

func (stubWriter) Add(context.Context, domain.Incident) error { return nil }

type stubParser struct{}

func (stubParser) Classify(context.Context, string, *domain.GeoPoint) (domain.QueryIntent, error) {
	return domain.QueryIntent{Fuzzy: true}, nil
}

type stubReader struct {
	incidents []domain.Incident
	err       error
}

func (s *stubReader) InWindow(context.Context, time.Time, time.Time) ([]domain.Incident, error) {
	return s.incidents, s.err
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type testHarness struct {
	store  *memQueryStore
	reader *stubReader
	pinger *stubPinger
	router *chi.Mux
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		store:  newMemQueryStore(),
		reader: &stubReader{},
		pinger: &stubPinger{},
	}

	logger := zap.NewNop()
	relay := relayuc.New(
		h.store, &stubSearcher{}, stubWriter{}, stubParser{},
		nil, nil, scoring.NewEngine(scoring.Config{}), logger,
	)
	safety := safetyuc.New(h.reader)
	health := healthuc.New(h.pinger, nil)

	server := NewServer(relay, safety, health, logger)
	h.router = chi.NewRouter()
	server.Register(h.router)
	return h
}

func (h *testHarness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitRelayQuery_Assistant(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/relay/query", submitRequest{
		QueryID:      "q-1",
		Kind:         "assistant",
		Text:         "fires near me",
		OriginDevice: "device-a",
		RelayDevice:  "relay-b",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(domain.StateCompleted) {
		t.Errorf("expected completed state, got %q", resp.State)
	}
	if resp.Result == "" {
		t.Error("expected a non-empty result")
	}
}

func TestSubmitRelayQuery_InvalidSubmission(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/relay/query", submitRequest{
		QueryID: "q-1",
		Kind:    "assistant",
		// Text missing: assistant queries must carry text.
		OriginDevice: "device-a",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "invalid_submission" {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestSubmitRelayQuery_MalformedBody(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/relay/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitRelayQuery_StoreOutageMapsTo503(t *testing.T) {
	h := newHarness(t)
	h.store.err = domain.ErrStoreUnavailable

	rec := h.do(t, http.MethodPost, "/api/relay/query", submitRequest{
		QueryID:      "q-1",
		Kind:         "assistant",
		Text:         "fires",
		OriginDevice: "device-a",
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on store outage")
	}
}

func TestCheckRelayQuery(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/relay/query", submitRequest{
		QueryID:      "q-42",
		Kind:         "assistant",
		Text:         "road blocked downtown",
		OriginDevice: "device-a",
	})

	rec := h.do(t, http.MethodGet, "/api/relay/check?query_id=q-42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp queryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.QueryID != "q-42" {
		t.Errorf("unexpected query id %q", resp.QueryID)
	}
	if resp.CompletedAt == nil {
		t.Error("completed query must carry a completion timestamp")
	}
}

func TestCheckRelayQuery_NotFound(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/relay/check?query_id=missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "query_not_found" {
		t.Errorf("unexpected error code %q", resp.Code)
	}
}

func TestCheckRelayQuery_MissingID(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/relay/check", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSafetyReport(t *testing.T) {
	h := newHarness(t)
	h.reader.incidents = []domain.Incident{
		{
			ID:         "i-1",
			ReportType: domain.TypeFire,
			Severity:   4,
			Location:   &domain.GeoPoint{Lat: 12.9716, Lon: 77.5946},
			Timestamp:  time.Now().Add(-time.Hour),
		},
	}

	rec := h.do(t, http.MethodGet,
		"/api/insights/safety?lat=12.9716&lon=77.5946&radius_km=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp safetyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SafetyScore >= 100 {
		t.Errorf("a nearby fire must lower the score, got %d", resp.SafetyScore)
	}
	if resp.CountsByType[domain.TypeFire] != 1 {
		t.Errorf("expected one fire in the breakdown, got %+v", resp.CountsByType)
	}
	if resp.RadiusKm != 10 {
		t.Errorf("expected the requested radius echoed, got %f", resp.RadiusKm)
	}
}

func TestSafetyReport_DefaultsWhenParamsOmitted(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/insights/safety", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp safetyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SafetyScore != 100 {
		t.Errorf("no incidents must yield 100, got %d", resp.SafetyScore)
	}
	if resp.RadiusKm != safetyuc.DefaultRadiusKm {
		t.Errorf("expected default radius, got %f", resp.RadiusKm)
	}
	if resp.WindowHours != safetyuc.DefaultWindow.Hours() {
		t.Errorf("expected default window, got %f", resp.WindowHours)
	}
}

func TestSafetyReport_BadCoordinates(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/insights/safety?lat=abc&lon=77.59", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSafetyReport_ReaderOutage(t *testing.T) {
	h := newHarness(t)
	h.reader.err = domain.ErrStoreUnavailable

	rec := h.do(t, http.MethodGet, "/api/insights/safety", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status string                          `json:"status"`
		Checks map[string]healthuc.CheckResult `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(healthuc.Healthy) {
		t.Errorf("expected ok status, got %q", resp.Status)
	}
}

func TestHealthCheck_DegradedReturns503(t *testing.T) {
	h := newHarness(t)
	h.pinger.err = errors.New("connection refused")

	rec := h.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected prometheus output")
	}
}
