package domain

import "time"

// QueryKind distinguishes assistant questions from SOS emergencies.
type QueryKind string

const (
	// KindAssistant is a natural-language question answered from the incident index.
	KindAssistant QueryKind = "assistant"
	// KindSOS is an emergency report that must reach the notifier.
	KindSOS QueryKind = "sos"
)

// Valid reports whether the kind is one of the known values.
func (k QueryKind) Valid() bool {
	return k == KindAssistant || k == KindSOS
}

// QueryState is the lifecycle state of a relay query.
// Transitions are monotonic: pending -> processing -> completed|failed.
type QueryState string

const (
	// StatePending is the initial state right after insertion.
	StatePending QueryState = "pending"
	// StateProcessing means exactly one relay owns the side-effecting path.
	StateProcessing QueryState = "processing"
	// StateCompleted is terminal; Result is set.
	StateCompleted QueryState = "completed"
	// StateFailed is terminal; Error is set.
	StateFailed QueryState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s QueryState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// RelayQuery is the unit of deduplication. Exactly one instance exists per
// QueryID for the lifetime of the system; the query store owns its state.
type RelayQuery struct {
	QueryID      string
	Kind         QueryKind
	Text         string
	OriginDevice string
	RelayDevice  string
	Location     *GeoPoint
	State        QueryState
	Result       string
	Error        string
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// Submission is the inbound payload from a relay before the query exists.
type Submission struct {
	QueryID      string
	Kind         QueryKind
	Text         string
	OriginDevice string
	RelayDevice  string
	Location     *GeoPoint
	// SOSType is the declared emergency category (fire, medical, ...);
	// only meaningful for KindSOS.
	SOSType string
}

// Validate checks the fields every submission must carry.
func (s Submission) Validate() error {
	if s.QueryID == "" || s.OriginDevice == "" {
		return ErrInvalidSubmission
	}
	if !s.Kind.Valid() {
		return ErrInvalidSubmission
	}
	if s.Kind == KindAssistant && s.Text == "" {
		return ErrInvalidSubmission
	}
	return nil
}

// NewRelayQuery builds the pending record for a fresh submission.
func NewRelayQuery(sub Submission, now time.Time) RelayQuery {
	return RelayQuery{
		QueryID:      sub.QueryID,
		Kind:         sub.Kind,
		Text:         sub.Text,
		OriginDevice: sub.OriginDevice,
		RelayDevice:  sub.RelayDevice,
		Location:     sub.Location,
		State:        StatePending,
		CreatedAt:    now.UTC(),
	}
}
