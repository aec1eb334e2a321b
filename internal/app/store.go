package app

import (
	"context"
	"fmt"
	"time"

	"quiz-engine/internal/domain"
)

// Store abstracts the key-value backend (in-memory, Redis, etc). Every component
// talks to the others only through it. Absent values are reported with ok=false;
// errors are reserved for infrastructure faults.
type Store interface {
	Ping(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)

	SetFields(ctx context.Context, key string, fields map[string]string) error
	// SetFieldsIfAbsent writes the hash and its TTL only if key does not exist.
	SetFieldsIfAbsent(ctx context.Context, key string, fields map[string]string, ttl time.Duration) (bool, error)
	GetFields(ctx context.Context, key string) (map[string]string, error)
	GetField(ctx context.Context, key, field string) (string, bool, error)
	IncrementField(ctx context.Context, key, field string, delta int64) (int64, error)

	// SetAdd reports whether member was newly added.
	SetAdd(ctx context.Context, key, member string) (bool, error)
	SetContains(ctx context.Context, key, member string) (bool, error)
	SetRemove(ctx context.Context, key, member string) error

	SortedSetIncrement(ctx context.Context, key, member string, delta float64) (float64, error)
	SortedSetSet(ctx context.Context, key, member string, score float64) error
	// SortedSetRangeWithScores returns members ordered by ascending score (ties by
	// member). start and stop are inclusive; negative indexes count from the end.
	SortedSetRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ListKeys returns the keys matching a glob pattern. Not atomic across the scan.
	ListKeys(ctx context.Context, pattern string) ([]string, error)

	// Atomic applies every write queued by fn as one unit.
	Atomic(ctx context.Context, fn func(Batch)) error
}

// Batch queues writes for Store.Atomic.
type Batch interface {
	IncrementField(key, field string, delta int64)
	SetAdd(key, member string)
	SortedSetIncrement(key, member string, delta float64)
	SortedSetSet(key, member string, score float64)
	SetWithTTL(key, value string, ttl time.Duration)
}

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
