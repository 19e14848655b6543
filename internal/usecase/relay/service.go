// Package relay coordinates relay query submissions: deduplication through
// the query store's CAS lifecycle, then exactly one execution of the
// side-effecting assistant or SOS path per query id.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/domain"
	"github.com/dhruv1108git/pulse/internal/domain/geo"
	"github.com/dhruv1108git/pulse/internal/domain/scoring"
	"github.com/dhruv1108git/pulse/internal/metrics"
	"github.com/dhruv1108git/pulse/internal/usecase/intent"
)

const (
	// sosSeverity is forced on every SOS incident regardless of submission.
	sosSeverity = 5

	defaultTopN        = 5
	defaultSearchLimit = 50
)

// Service is the relay coordinator.
type Service struct {
	queries    QueryStore
	searcher   IncidentSearcher
	incidents  IncidentWriter
	classifier IntentParser
	embedder   domain.Embedder
	notifier   domain.Notifier
	engine     *scoring.Engine
	logger     *zap.Logger

	topN        int
	searchLimit int
	now         func() time.Time
	newID       func() string
}

// New creates a relay coordinator. embedder and notifier may be nil: scoring
// then runs keyword-only, and SOS dispatches are reported as skipped.
func New(
	queries QueryStore,
	searcher IncidentSearcher,
	incidents IncidentWriter,
	classifier IntentParser,
	embedder domain.Embedder,
	notifier domain.Notifier,
	engine *scoring.Engine,
	logger *zap.Logger,
) *Service {
	return &Service{
		queries:     queries,
		searcher:    searcher,
		incidents:   incidents,
		classifier:  classifier,
		embedder:    embedder,
		notifier:    notifier,
		engine:      engine,
		logger:      logger,
		topN:        defaultTopN,
		searchLimit: defaultSearchLimit,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WithLimits overrides the result size and candidate cap. Non-positive
// values keep the defaults.
func (s *Service) WithLimits(topN, searchLimit int) *Service {
	if topN > 0 {
		s.topN = topN
	}
	if searchLimit > 0 {
		s.searchLimit = searchLimit
	}
	return s
}

// HandleRelaySubmission is the single entry point for relay submissions.
// Duplicates (by query id) return the existing record without re-running any
// side effects; the winner runs the query to a terminal state before
// returning. Only store unavailability surfaces as an error.
func (s *Service) HandleRelaySubmission(
	ctx context.Context, sub domain.Submission,
) (domain.RelayQuery, error) {
	if err := sub.Validate(); err != nil {
		return domain.RelayQuery{}, err
	}

	rec, inserted, err := s.queries.TryInsertPending(ctx, domain.NewRelayQuery(sub, s.now()))
	if err != nil {
		return domain.RelayQuery{}, fmt.Errorf("insert query: %w", err)
	}
	if !inserted {
		metrics.RelayDedupHitsTotal.Inc()
		metrics.RelaySubmissionsTotal.WithLabelValues(string(rec.Kind), "duplicate").Inc()
		s.logger.Info("Duplicate relay submission",
			zap.String("query_id", rec.QueryID),
			zap.String("state", string(rec.State)))
		return rec, nil
	}

	if err := s.queries.TransitionToProcessing(ctx, sub.QueryID, sub.RelayDevice); err != nil {
		// A racing relay advanced the query between our insert and claim;
		// same outcome as the duplicate path.
		if errors.Is(err, domain.ErrTransitionConflict) {
			metrics.RelayDedupHitsTotal.Inc()
			return s.queries.Get(ctx, sub.QueryID)
		}
		return domain.RelayQuery{}, fmt.Errorf("claim query: %w", err)
	}

	// The submitter may disconnect at any point after the claim; the query
	// still has to reach a terminal state. Processing and the terminal writes
	// run detached from the caller's cancellation.
	pctx := context.WithoutCancel(ctx)
	if err := s.process(pctx, rec, sub); err != nil {
		return domain.RelayQuery{}, err
	}
	return s.queries.Get(pctx, sub.QueryID)
}

// Status returns the current record for polling callers.
func (s *Service) Status(ctx context.Context, queryID string) (domain.RelayQuery, error) {
	return s.queries.Get(ctx, queryID)
}

// process runs the side-effecting path and always records a terminal state.
// The returned error is a store failure while recording the outcome; run
// failures land in FailWith instead.
func (s *Service) process(ctx context.Context, q domain.RelayQuery, sub domain.Submission) error {
	result, runErr := s.run(ctx, q, sub)
	if runErr != nil {
		s.logger.Error("Relay query failed",
			zap.String("query_id", q.QueryID),
			zap.String("kind", string(q.Kind)),
			zap.Error(runErr))
		metrics.RelaySubmissionsTotal.WithLabelValues(string(q.Kind), "failed").Inc()
		if err := s.queries.FailWith(ctx, q.QueryID, runErr.Error()); err != nil &&
			!errors.Is(err, domain.ErrAlreadyTerminal) {
			return fmt.Errorf("record failure: %w", err)
		}
		return nil
	}

	metrics.RelaySubmissionsTotal.WithLabelValues(string(q.Kind), "completed").Inc()
	if err := s.queries.CompleteWith(ctx, q.QueryID, result); err != nil &&
		!errors.Is(err, domain.ErrAlreadyTerminal) {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// run dispatches by kind. Panics become run errors so the query still
// terminates in Failed.
func (s *Service) run(
	ctx context.Context, q domain.RelayQuery, sub domain.Submission,
) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query processing panicked: %v", r)
		}
	}()

	if q.Kind == domain.KindSOS {
		return s.runSOS(ctx, q, sub)
	}
	return s.runAssistant(ctx, q)
}

func (s *Service) runAssistant(ctx context.Context, q domain.RelayQuery) (string, error) {
	qi, err := s.classifier.Classify(ctx, q.Text, q.Location)
	if err != nil {
		s.logger.Warn("Classification failed, using heuristic intent",
			zap.String("query_id", q.QueryID), zap.Error(err))
		metrics.RelayFallbacksTotal.Inc()
		qi = intent.Heuristic(q.Text)
	}

	fp := domain.Fingerprint{Intent: qi}
	if s.embedder != nil {
		res, err := s.embedder.Embed(ctx, q.Text)
		if err != nil {
			s.logger.Warn("Query embedding unavailable, scoring keyword-only",
				zap.String("query_id", q.QueryID), zap.Error(err))
		} else {
			fp.Embedding = res.Embedding
		}
	}

	candidates, err := s.searcher.Search(ctx, qi, s.searchLimit)
	if err != nil {
		if !errors.Is(err, domain.ErrSearchUnavailable) {
			return "", fmt.Errorf("search incidents: %w", err)
		}
		s.logger.Warn("Incident search unavailable, completing with empty results",
			zap.String("query_id", q.QueryID), zap.Error(err))
		candidates = nil
	}

	now := s.now()
	scored := make([]scoring.Scored, 0, len(candidates))
	for _, inc := range candidates {
		score, comps := s.engine.ComputeRelevance(inc, fp, q.Location, now)
		scored = append(scored, scoring.Scored{Incident: inc, Score: score, Components: comps})
	}
	scoring.Rank(scored)
	if len(scored) > s.topN {
		scored = scored[:s.topN]
	}

	return formatAssistantResult(scored, qi, q.Location), nil
}

func (s *Service) runSOS(
	ctx context.Context, q domain.RelayQuery, sub domain.Submission,
) (string, error) {
	sosType := sub.SOSType
	if sosType == "" {
		sosType = "sos"
	}

	inc := domain.Incident{
		ID:          s.newID(),
		ReportType:  sosType,
		Title:       "SOS: " + sosType,
		Description: q.Text,
		Location:    q.Location,
		Severity:    sosSeverity,
		Timestamp:   s.now(),
	}
	if err := s.incidents.Add(ctx, inc); err != nil {
		return "", fmt.Errorf("persist sos incident: %w", err)
	}

	report := s.dispatch(ctx, inc)
	return formatSOSResult(inc, report), nil
}

// dispatch never fails the SOS: a notifier error becomes an undelivered
// report carried in the query result.
func (s *Service) dispatch(ctx context.Context, inc domain.Incident) domain.DispatchReport {
	if s.notifier == nil {
		metrics.NotifierDispatchesTotal.WithLabelValues("skipped").Inc()
		return domain.DispatchReport{Detail: "no notifier configured"}
	}

	report, err := s.notifier.Dispatch(ctx, domain.DispatchRequest{
		IncidentType: inc.ReportType,
		Severity:     inc.Severity,
		Location:     inc.Location,
		Description:  inc.Description,
	})
	if err != nil {
		s.logger.Error("SOS notifier dispatch failed",
			zap.String("incident_id", inc.ID), zap.Error(err))
		metrics.NotifierDispatchesTotal.WithLabelValues("failed").Inc()
		return domain.DispatchReport{Detail: err.Error()}
	}
	if report.Delivered {
		metrics.NotifierDispatchesTotal.WithLabelValues("delivered").Inc()
	} else {
		metrics.NotifierDispatchesTotal.WithLabelValues("failed").Inc()
	}
	return report
}

func formatAssistantResult(
	scored []scoring.Scored, qi domain.QueryIntent, userLoc *domain.GeoPoint,
) string {
	var b strings.Builder

	if len(scored) == 0 {
		b.WriteString("No incidents found for your query.")
	} else {
		fmt.Fprintf(&b, "Found %d relevant incident(s):\n", len(scored))
		for i, sc := range scored {
			inc := sc.Incident
			fmt.Fprintf(&b, "%d. [%s] %s (severity %d", i+1, inc.ReportType, inc.Title, inc.Severity)
			if userLoc != nil && inc.Location != nil {
				distKm := geo.Haversine(
					userLoc.Lat, userLoc.Lon, inc.Location.Lat, inc.Location.Lon,
				) / 1000
				fmt.Fprintf(&b, ", %.1f km away", distKm)
			}
			fmt.Fprintf(&b, ", score %.2f)\n", sc.Score)
		}
	}

	if qi.Degraded {
		b.WriteString("\nNote: query understanding was degraded; results are keyword matched.")
	}
	return b.String()
}

func formatSOSResult(inc domain.Incident, report domain.DispatchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SOS recorded as incident %s.", inc.ID)
	if report.Delivered {
		fmt.Fprintf(&b, " Emergency contact notified (ref %s).", report.ReferenceID)
	} else {
		fmt.Fprintf(&b, " Emergency notification not delivered: %s."+
			" The report is recorded and visible to responders.", report.Detail)
	}
	return b.String()
}
