// Package intent turns free-text queries into structured search intents,
// either through a language model or through the keyword heuristic fallback.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

const systemPrompt = `You are an expert at parsing natural language queries for emergency incident search.

Extract the following information from the user's query:
1. incident_type: Type of incident (fire, crime, roadblock, power_outage, medical, accident, other)
2. keywords: Key search terms
3. time_filter: Time range (today, yesterday, last_week, last_month, none)
4. location_filter: Location mentioned (specific place name or "near_me")
5. severity: Implied urgency (critical, high, medium, low, none)

Return only JSON in this format:
{
  "incident_type": "fire",
  "keywords": ["downtown", "building"],
  "time_filter": "yesterday",
  "location_filter": "downtown",
  "severity": "high",
  "fuzzy_search": true
}

Be precise but flexible with synonyms (e.g., "blaze" = fire, "crash" = accident).`

const (
	maxAttempts  = 3
	retryBackoff = time.Second
)

// intentWire is the JSON shape the model is asked to return.
type intentWire struct {
	IncidentType   string   `json:"incident_type"`
	Keywords       []string `json:"keywords"`
	TimeFilter     string   `json:"time_filter"`
	LocationFilter string   `json:"location_filter"`
	Severity       string   `json:"severity"`
	FuzzySearch    bool     `json:"fuzzy_search"`
}

// Service classifies queries with a text generator. Malformed model output is
// a classification failure, never a guess: the caller decides whether to fall
// back to the heuristic.
type Service struct {
	generator TextGenerator
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a classification service.
func New(generator TextGenerator) *Service {
	return &Service{generator: generator, sleep: sleepCtx}
}

// Classify parses the query text into a structured intent. The submitter's
// location, when known, is included in the prompt so "near me" resolves.
// Rate-limited generator calls are retried with doubling backoff; any other
// generator failure or unparseable output returns ErrClassificationFailed.
func (s *Service) Classify(
	ctx context.Context, text string, loc *domain.GeoPoint,
) (domain.QueryIntent, error) {
	prompt := fmt.Sprintf("%s\n\nParse this search query: %q", systemPrompt, text)
	if loc != nil {
		prompt += fmt.Sprintf("\nUser is at: lat=%g, lon=%g", loc.Lat, loc.Lon)
	}

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return domain.QueryIntent{}, fmt.Errorf("%w: %w", domain.ErrClassificationFailed, err)
	}

	var wire intentWire
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return domain.QueryIntent{}, fmt.Errorf("%w: decode model output: %w", domain.ErrClassificationFailed, err)
	}

	return wire.toIntent(), nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	backoff := retryBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := s.generator.Generate(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrRateLimited) || attempt == maxAttempts {
			break
		}
		if err := s.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stripFences unwraps a markdown code block the model may wrap the JSON in.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(raw, "```json"); ok {
		raw = after
	} else if after, ok := strings.CutPrefix(raw, "```"); ok {
		raw = after
	} else {
		return raw
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

func (w intentWire) toIntent() domain.QueryIntent {
	intent := domain.QueryIntent{
		TimeWindow:   domain.WindowNone,
		LocationHint: w.LocationFilter,
		Fuzzy:        w.FuzzySearch,
		Keywords:     w.Keywords,
	}

	switch w.IncidentType {
	case "", "other":
	default:
		intent.TypeFilter = w.IncidentType
	}

	switch tw := domain.TimeWindow(w.TimeFilter); tw {
	case domain.WindowToday, domain.WindowYesterday, domain.WindowLastWeek, domain.WindowLastMonth:
		intent.TimeWindow = tw
	}

	switch sev := domain.SeverityHint(w.Severity); sev {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
		intent.SeverityHint = sev
	}

	return intent
}
