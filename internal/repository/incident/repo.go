// Package incident stores incident reports as hashes plus a timestamp-scored
// timeline index, which is what the time-window searches range over.
package incident

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
)

const (
	keyPrefix   = "pulse:incident:"
	timelineKey = "pulse:incident:timeline"
)

// store is the consumer interface for the incident repository (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error)
}

// Repository is the incident index adapter over Redis.
type Repository struct {
	store store
	now   func() time.Time
}

// New creates an incident repository.
func New(s store) *Repository {
	return &Repository{store: s, now: time.Now}
}

// WithClock overrides the search clock (tests).
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func key(id string) string {
	return keyPrefix + id
}

// Add indexes an incident: the record hash plus its timeline entry.
func (r *Repository) Add(ctx context.Context, inc domain.Incident) error {
	fields, err := incidentToFields(inc)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key(inc.ID), fields); err != nil {
		return storeErr("index incident", err)
	}
	if err := r.store.ZAdd(ctx, timelineKey, float64(inc.Timestamp.UTC().Unix()), inc.ID); err != nil {
		return storeErr("index incident timeline", err)
	}
	return nil
}

// Search returns candidate incidents for the parsed intent: the timeline is
// ranged over the intent's time window, then the type filter is applied.
// Store failures surface as ErrSearchUnavailable so the caller can complete
// the query with an empty result instead of failing it.
func (r *Repository) Search(
	ctx context.Context, intent domain.QueryIntent, limit int,
) ([]domain.Incident, error) {
	min, max := "-inf", "+inf"
	if intent.TimeWindow != domain.WindowNone && intent.TimeWindow != "" {
		from, to := intent.TimeWindow.Range(r.now())
		min = strconv.FormatInt(from.Unix(), 10)
		max = strconv.FormatInt(to.Unix(), 10)
	}

	incidents, err := r.load(ctx, min, max)
	if err != nil {
		return nil, fmt.Errorf("search incidents: %w: %w", domain.ErrSearchUnavailable, err)
	}

	if intent.TypeFilter != "" {
		filtered := incidents[:0]
		for _, inc := range incidents {
			if inc.ReportType == intent.TypeFilter {
				filtered = append(filtered, inc)
			}
		}
		incidents = filtered
	}

	if limit > 0 && len(incidents) > limit {
		incidents = incidents[:limit]
	}
	return incidents, nil
}

// InWindow returns all incidents with timestamp in [from, to].
func (r *Repository) InWindow(ctx context.Context, from, to time.Time) ([]domain.Incident, error) {
	incidents, err := r.load(
		ctx,
		strconv.FormatInt(from.Unix(), 10),
		strconv.FormatInt(to.Unix(), 10),
	)
	if err != nil {
		return nil, storeErr("load incident window", err)
	}
	return incidents, nil
}

func (r *Repository) load(ctx context.Context, min, max string) ([]domain.Incident, error) {
	ids, err := r.store.ZRangeByScore(ctx, timelineKey, min, max)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, err
	}

	incidents := make([]domain.Incident, 0, len(hashes))
	for i, fields := range hashes {
		// Timeline entries can outlive their hash; skip the orphans.
		if len(fields) == 0 {
			continue
		}
		inc, err := incidentFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("decode incident %s: %w", ids[i], err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
