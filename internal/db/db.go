package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	HashStore
	KVStore
	SortedSetStore
	AtomicStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SortedSetStore provides score-ordered set operations (timeline indexes).
type SortedSetStore interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRangeByScore returns members with score in [min, max]; min/max accept
	// "-inf"/"+inf".
	ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error)
}

// CASOutcome reports the result of a conditional hash-field swap.
type CASOutcome struct {
	// Found is false when the key does not exist.
	Found bool
	// Applied is true when the expected value matched and the update ran.
	Applied bool
	// Current is the field value observed when the swap was not applied.
	Current string
}

// AtomicStore provides the compare-and-swap primitives the relay query
// lifecycle depends on. Both operations execute as single server-side
// scripts; they are never composed from separate read and write calls.
type AtomicStore interface {
	// HSetIfAbsent creates the hash with the given fields only if the key
	// does not exist yet. Returns false when the key was already present.
	HSetIfAbsent(ctx context.Context, key string, fields map[string]string) (bool, error)
	// HCompareAndSwap sets the update fields only if hash field `field`
	// currently equals `expect`.
	HCompareAndSwap(
		ctx context.Context, key, field, expect string, update map[string]string,
	) (CASOutcome, error)
}
