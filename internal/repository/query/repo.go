// Package query persists relay queries and enforces their lifecycle with
// store-side compare-and-swap, so at-most-once processing holds across
// processes, not just goroutines.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/dhruv1108git/pulse/internal/db"
	"github.com/dhruv1108git/pulse/internal/domain"
)

const keyPrefix = "pulse:relay:query:"

// store is the consumer interface for the query repository (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetIfAbsent(ctx context.Context, key string, fields map[string]string) (bool, error)
	HCompareAndSwap(
		ctx context.Context, key, field, expect string, update map[string]string,
	) (db.CASOutcome, error)
}

// Repository is the QueryStore adapter over Redis.
type Repository struct {
	store store
	now   func() time.Time
}

// New creates a query repository.
func New(s store) *Repository {
	return &Repository{store: s, now: time.Now}
}

// WithClock overrides the completion-timestamp clock (tests).
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func key(queryID string) string {
	return keyPrefix + queryID
}

// TryInsertPending atomically creates the pending record. When a record with
// the same id already exists, it is returned with inserted=false and nothing
// is written.
func (r *Repository) TryInsertPending(
	ctx context.Context, q domain.RelayQuery,
) (domain.RelayQuery, bool, error) {
	inserted, err := r.store.HSetIfAbsent(ctx, key(q.QueryID), queryToFields(q))
	if err != nil {
		return domain.RelayQuery{}, false, storeErr("insert pending", err)
	}
	if inserted {
		return q, true, nil
	}

	existing, err := r.Get(ctx, q.QueryID)
	if err != nil {
		return domain.RelayQuery{}, false, fmt.Errorf("load existing query: %w", err)
	}
	return existing, false, nil
}

// TransitionToProcessing claims ownership of the side-effecting path.
// Succeeds only from pending; exactly one caller ever succeeds per query.
func (r *Repository) TransitionToProcessing(ctx context.Context, queryID, relayDevice string) error {
	outcome, err := r.store.HCompareAndSwap(
		ctx, key(queryID), fieldState, string(domain.StatePending),
		map[string]string{
			fieldState:       string(domain.StateProcessing),
			fieldRelayDevice: relayDevice,
		},
	)
	if err != nil {
		return storeErr("transition to processing", err)
	}
	if !outcome.Found {
		return domain.ErrQueryNotFound
	}
	if !outcome.Applied {
		return fmt.Errorf("%w: state is %s", domain.ErrTransitionConflict, outcome.Current)
	}
	return nil
}

// CompleteWith moves the query from processing to completed and records the result.
func (r *Repository) CompleteWith(ctx context.Context, queryID, result string) error {
	return r.finish(ctx, queryID, domain.StateCompleted, map[string]string{
		fieldResult: result,
	})
}

// FailWith moves the query from processing to failed and records the error message.
func (r *Repository) FailWith(ctx context.Context, queryID, message string) error {
	return r.finish(ctx, queryID, domain.StateFailed, map[string]string{
		fieldError: message,
	})
}

func (r *Repository) finish(
	ctx context.Context, queryID string, terminal domain.QueryState, extra map[string]string,
) error {
	update := map[string]string{
		fieldState:       string(terminal),
		fieldCompletedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		update[k] = v
	}

	outcome, err := r.store.HCompareAndSwap(
		ctx, key(queryID), fieldState, string(domain.StateProcessing), update,
	)
	if err != nil {
		return storeErr("finish query", err)
	}
	if !outcome.Found {
		return domain.ErrQueryNotFound
	}
	if !outcome.Applied {
		if domain.QueryState(outcome.Current).Terminal() {
			return fmt.Errorf("%w: state is %s", domain.ErrAlreadyTerminal, outcome.Current)
		}
		return fmt.Errorf("%w: state is %s", domain.ErrTransitionConflict, outcome.Current)
	}
	return nil
}

// Get returns the current record.
func (r *Repository) Get(ctx context.Context, queryID string) (domain.RelayQuery, error) {
	fields, err := r.store.HGetAll(ctx, key(queryID))
	if err != nil {
		return domain.RelayQuery{}, storeErr("get query", err)
	}
	if len(fields) == 0 {
		return domain.RelayQuery{}, domain.ErrQueryNotFound
	}
	q, err := queryFromFields(fields)
	if err != nil {
		return domain.RelayQuery{}, fmt.Errorf("decode query %s: %w", queryID, err)
	}
	return q, nil
}

// storeErr maps backend failures to the retryable store-unavailable sentinel.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
