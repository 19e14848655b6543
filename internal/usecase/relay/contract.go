package relay

import (
	"context"

	"github.com/dhruv1108git/pulse/internal/domain"
)

// QueryStore is the lifecycle contract the coordinator drives. The backing
// store must implement the conditional operations atomically; the coordinator
// never composes them from reads and writes.
type QueryStore interface {
	TryInsertPending(ctx context.Context, q domain.RelayQuery) (domain.RelayQuery, bool, error)
	TransitionToProcessing(ctx context.Context, queryID, relayDevice string) error
	CompleteWith(ctx context.Context, queryID, result string) error
	FailWith(ctx context.Context, queryID, message string) error
	Get(ctx context.Context, queryID string) (domain.RelayQuery, error)
}

// IncidentSearcher finds candidate incidents for a parsed intent.
type IncidentSearcher interface {
	Search(ctx context.Context, intent domain.QueryIntent, limit int) ([]domain.Incident, error)
}

// IncidentWriter appends SOS incident records to the index.
type IncidentWriter interface {
	Add(ctx context.Context, inc domain.Incident) error
}

// IntentParser classifies free-text queries.
type IntentParser interface {
	Classify(ctx context.Context, text string, loc *domain.GeoPoint) (domain.QueryIntent, error)
}
