// Package intentcache caches classifier output keyed by query text, so
// repeated phrasings of the same question skip the model round-trip.
package intentcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/db"
	"github.com/dhruv1108git/pulse/internal/domain"
)

const cacheKeyPrefix = "pulse:intent_cache:"

// classifier is the inner parser the cache decorates.
type classifier interface {
	Classify(ctx context.Context, text string, loc *domain.GeoPoint) (domain.QueryIntent, error)
}

// store is the consumer interface for the intent cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedClassifier caches parsed intents in a key-value store.
type CachedClassifier struct {
	inner      classifier
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner classifier,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedClassifier {
	return &CachedClassifier{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Classify returns a cached intent or calls the inner classifier.
// The key covers both text and location: "near me" parses differently
// depending on where the submitter stands.
// Degraded intents are never cached: they come from the fallback heuristic and
// should be retried against the real classifier next time.
func (c *CachedClassifier) Classify(
	ctx context.Context, text string, loc *domain.GeoPoint,
) (domain.QueryIntent, error) {
	key := c.cacheKey(text, loc)

	if intent, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return intent, nil
	}

	c.incCache("miss")

	intent, err := c.inner.Classify(ctx, text, loc)
	if err != nil {
		return domain.QueryIntent{}, fmt.Errorf("classify query: %w", err)
	}

	if !intent.Degraded {
		c.putToCache(ctx, key, intent)
	}
	return intent, nil
}

func (c *CachedClassifier) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedClassifier) cacheKey(text string, loc *domain.GeoPoint) string {
	keyed := text
	if loc != nil {
		keyed = fmt.Sprintf("%s|%g,%g", text, loc.Lat, loc.Lon)
	}
	h := sha256.Sum256([]byte(keyed))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedClassifier) getFromCache(ctx context.Context, key string) (domain.QueryIntent, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached intent", zap.String("key", key), zap.Error(err))
		}
		return domain.QueryIntent{}, false
	}
	if len(data) == 0 {
		return domain.QueryIntent{}, false
	}

	var intent domain.QueryIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		c.logger.Warn("Failed to parse cached intent", zap.String("key", key), zap.Error(err))
		return domain.QueryIntent{}, false
	}
	return intent, true
}

func (c *CachedClassifier) putToCache(ctx context.Context, key string, intent domain.QueryIntent) {
	data, err := json.Marshal(intent)
	if err != nil {
		c.logger.Warn("Failed to encode intent for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache intent", zap.String("key", key), zap.Error(err))
	}
}
