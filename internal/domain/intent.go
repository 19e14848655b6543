package domain

import "time"

// TimeWindow is the time filter extracted from a query.
type TimeWindow string

const (
	WindowToday     TimeWindow = "today"
	WindowYesterday TimeWindow = "yesterday"
	WindowLastWeek  TimeWindow = "last_week"
	WindowLastMonth TimeWindow = "last_month"
	WindowNone      TimeWindow = "none"
)

// Range resolves the window to a concrete [from, to) interval relative to now.
// WindowNone returns the zero interval; callers choose their own default span.
func (w TimeWindow) Range(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch w {
	case WindowToday:
		return startOfDay, now
	case WindowYesterday:
		return startOfDay.AddDate(0, 0, -1), startOfDay
	case WindowLastWeek:
		return now.AddDate(0, 0, -7), now
	case WindowLastMonth:
		return now.AddDate(0, 0, -30), now
	default:
		return time.Time{}, time.Time{}
	}
}

// SeverityHint is the urgency implied by the query phrasing.
type SeverityHint string

const (
	SeverityLow      SeverityHint = "low"
	SeverityMedium   SeverityHint = "medium"
	SeverityHigh     SeverityHint = "high"
	SeverityCritical SeverityHint = "critical"
	SeverityNone     SeverityHint = ""
)

// Band returns the inclusive declared-severity range (1-5 scale) the hint
// maps to. SeverityNone matches nothing.
func (s SeverityHint) Band() (min, max int) {
	switch s {
	case SeverityCritical:
		return 5, 5
	case SeverityHigh:
		return 4, 5
	case SeverityMedium:
		return 3, 4
	case SeverityLow:
		return 1, 2
	default:
		return 0, 0
	}
}

// QueryIntent is the structured reading of a free-text query. It lives for a
// single search request and is never persisted.
type QueryIntent struct {
	// TypeFilter restricts results to one report type; empty means all.
	TypeFilter string
	TimeWindow TimeWindow
	// LocationHint is a free-text place mention ("downtown", "near me").
	LocationHint string
	SeverityHint SeverityHint
	Fuzzy        bool
	// Keywords are the salient search terms.
	Keywords []string
	// Degraded marks an intent produced by the heuristic fallback rather
	// than the classifier; surfaced to callers as lowered confidence.
	Degraded bool
}

// Fingerprint is the per-query signal set the scoring engine consumes:
// the parsed intent plus the optional query embedding. It is distinct from
// the query id, which is identity only.
type Fingerprint struct {
	Intent    QueryIntent
	Embedding []float32
}
