package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"quiz-engine/internal/app"
)

// ErrWrongType mirrors Redis' WRONGTYPE reply.
var ErrWrongType = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

type kind int

const (
	kindString kind = iota + 1
	kindHash
	kindSet
	kindZSet
)

type entry struct {
	kind      kind
	str       string
	hash      map[string]string
	set       map[string]struct{}
	zset      map[string]float64
	expiresAt time.Time // zero means no expiry
}

// Store is an in-memory implementation of app.Store. Expired keys are evicted
// lazily on access. A single mutex makes every primitive, and every Atomic batch,
// linearizable.
type Store struct {
	mu    sync.Mutex
	clock func() time.Time
	data  map[string]*entry
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic expiry in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		clock: now,
		data:  make(map[string]*entry),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(key) != nil, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookupLocked(key)
	if e == nil {
		return nil
	}
	if ttl <= 0 {
		delete(s.data, key)
		return nil
	}
	e.expiresAt = s.clock().Add(ttl)
	return nil
}

func (s *Store) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookupLocked(key)
	if e == nil {
		return "", false, nil
	}
	if e.kind != kindString {
		return "", false, ErrWrongType
	}
	return e.str, true, nil
}

func (s *Store) SetFields(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.hashEntryLocked(key, true)
	if err != nil {
		return err
	}
	for f, v := range fields {
		e.hash[f] = v
	}
	return nil
}

func (s *Store) SetFieldsIfAbsent(_ context.Context, key string, fields map[string]string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupLocked(key) != nil {
		return false, nil
	}
	e := &entry{kind: kindHash, hash: make(map[string]string, len(fields))}
	for f, v := range fields {
		e.hash[f] = v
	}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

func (s *Store) GetFields(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.hashEntryLocked(key, false)
	if err != nil || e == nil {
		return map[string]string{}, err
	}
	out := make(map[string]string, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

func (s *Store) GetField(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.hashEntryLocked(key, false)
	if err != nil || e == nil {
		return "", false, err
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

func (s *Store) IncrementField(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementFieldLocked(key, field, delta)
}

func (s *Store) SetAdd(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAddLocked(key, member)
}

func (s *Store) SetContains(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.setEntryLocked(key, false)
	if err != nil || e == nil {
		return false, err
	}
	_, ok := e.set[member]
	return ok, nil
}

func (s *Store) SetRemove(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.setEntryLocked(key, false)
	if err != nil || e == nil {
		return err
	}
	delete(e.set, member)
	if len(e.set) == 0 {
		delete(s.data, key)
	}
	return nil
}

func (s *Store) SortedSetIncrement(_ context.Context, key, member string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zincrLocked(key, member, delta)
}

func (s *Store) SortedSetSet(_ context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zsetLocked(key, member, score)
}

func (s *Store) SortedSetRangeWithScores(_ context.Context, key string, start, stop int64) ([]app.ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.zsetEntryLocked(key, false)
	if err != nil || e == nil {
		return nil, err
	}

	members := make([]app.ScoredMember, 0, len(e.zset))
	for m, score := range e.zset {
		members = append(members, app.ScoredMember{Member: m, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score < members[j].Score
		}
		return members[i].Member < members[j].Member
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return []app.ScoredMember{}, nil
	}
	return members[start : stop+1], nil
}

// ListKeys matches keys against a glob with no separator characters, so `*`
// spans any byte the way Redis MATCH does. Backslash escapes a metacharacter.
func (s *Store) ListKeys(_ context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0)
	for key := range s.data {
		if s.lookupLocked(key) == nil {
			continue
		}
		if g.Match(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Atomic(_ context.Context, fn func(app.Batch)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &batch{store: s}
	fn(b)
	return b.err
}

// batch applies writes directly; the caller holds the store mutex.
type batch struct {
	store *Store
	err   error
}

func (b *batch) record(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func (b *batch) IncrementField(key, field string, delta int64) {
	_, err := b.store.incrementFieldLocked(key, field, delta)
	b.record(err)
}

func (b *batch) SetAdd(key, member string) {
	_, err := b.store.setAddLocked(key, member)
	b.record(err)
}

func (b *batch) SortedSetIncrement(key, member string, delta float64) {
	_, err := b.store.zincrLocked(key, member, delta)
	b.record(err)
}

func (b *batch) SortedSetSet(key, member string, score float64) {
	b.record(b.store.zsetLocked(key, member, score))
}

func (b *batch) SetWithTTL(key, value string, ttl time.Duration) {
	b.store.setLocked(key, value, ttl)
}

func (s *Store) lookupLocked(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.clock().Before(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *Store) setLocked(key, value string, ttl time.Duration) {
	e := &entry{kind: kindString, str: value}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	s.data[key] = e
}

func (s *Store) hashEntryLocked(key string, create bool) (*entry, error) {
	e := s.lookupLocked(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{kind: kindHash, hash: make(map[string]string)}
		s.data[key] = e
	}
	if e.kind != kindHash {
		return nil, ErrWrongType
	}
	return e, nil
}

func (s *Store) setEntryLocked(key string, create bool) (*entry, error) {
	e := s.lookupLocked(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{kind: kindSet, set: make(map[string]struct{})}
		s.data[key] = e
	}
	if e.kind != kindSet {
		return nil, ErrWrongType
	}
	return e, nil
}

func (s *Store) zsetEntryLocked(key string, create bool) (*entry, error) {
	e := s.lookupLocked(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{kind: kindZSet, zset: make(map[string]float64)}
		s.data[key] = e
	}
	if e.kind != kindZSet {
		return nil, ErrWrongType
	}
	return e, nil
}

func (s *Store) incrementFieldLocked(key, field string, delta int64) (int64, error) {
	e, err := s.hashEntryLocked(key, true)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw, ok := e.hash[field]; ok {
		current, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, errors.New("hash value is not an integer")
		}
	}
	current += delta
	e.hash[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (s *Store) setAddLocked(key, member string) (bool, error) {
	e, err := s.setEntryLocked(key, true)
	if err != nil {
		return false, err
	}
	if _, ok := e.set[member]; ok {
		return false, nil
	}
	e.set[member] = struct{}{}
	return true, nil
}

func (s *Store) zincrLocked(key, member string, delta float64) (float64, error) {
	e, err := s.zsetEntryLocked(key, true)
	if err != nil {
		return 0, err
	}
	e.zset[member] += delta
	return e.zset[member], nil
}

func (s *Store) zsetLocked(key, member string, score float64) error {
	e, err := s.zsetEntryLocked(key, true)
	if err != nil {
		return err
	}
	e.zset[member] = score
	return nil
}
