package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-engine/internal/app"
)

const scanBatch = 100

// setFieldsIfAbsent writes a hash and its TTL only when the key is missing.
// KEYS[1] = hash key, ARGV[1] = ttl in ms (0 = none), ARGV[2..] = field/value pairs.
var setFieldsIfAbsent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
local ttl = tonumber(ARGV[1])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`)

// Store implements app.Store on top of a single go-redis client. Every primitive
// maps to one Redis command, so each is atomic on its own; Atomic wraps a group
// in MULTI/EXEC.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, 2*len(fields))
	for f, v := range fields {
		args = append(args, f, v)
	}
	return s.client.HSet(ctx, key, args...).Err()
}

func (s *Store) SetFieldsIfAbsent(ctx context.Context, key string, fields map[string]string, ttl time.Duration) (bool, error) {
	if len(fields) == 0 {
		return false, errors.New("set fields if absent: no fields")
	}
	args := make([]interface{}, 0, 1+2*len(fields))
	args = append(args, ttl.Milliseconds())
	for f, v := range fields {
		args = append(args, f, v)
	}
	n, err := setFieldsIfAbsent.Run(ctx, s.client, []string{key}, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetFields(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Store) GetField(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) IncrementField(ctx context.Context, key, field string, delta int64) (int64, error) {
	return s.client.HIncrBy(ctx, key, field, delta).Result()
}

func (s *Store) SetAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := s.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) SetContains(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *Store) SetRemove(ctx context.Context, key, member string) error {
	return s.client.SRem(ctx, key, member).Err()
}

func (s *Store) SortedSetIncrement(ctx context.Context, key, member string, delta float64) (float64, error) {
	return s.client.ZIncrBy(ctx, key, delta, member).Result()
}

func (s *Store) SortedSetSet(ctx context.Context, key, member string, score float64) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *Store) SortedSetRangeWithScores(ctx context.Context, key string, start, stop int64) ([]app.ScoredMember, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]app.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, app.ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

// ListKeys walks the keyspace with SCAN so large databases are not blocked the
// way KEYS would block them. Keys may appear or vanish during the walk.
func (s *Store) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// SCAN may return a key more than once.
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(app.Batch)) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(&batch{ctx: ctx, pipe: pipe})
		return nil
	})
	return err
}

type batch struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (b *batch) IncrementField(key, field string, delta int64) {
	b.pipe.HIncrBy(b.ctx, key, field, delta)
}

func (b *batch) SetAdd(key, member string) {
	b.pipe.SAdd(b.ctx, key, member)
}

func (b *batch) SortedSetIncrement(key, member string, delta float64) {
	b.pipe.ZIncrBy(b.ctx, key, delta, member)
}

func (b *batch) SortedSetSet(key, member string, score float64) {
	b.pipe.ZAdd(b.ctx, key, redis.Z{Score: score, Member: member})
}

func (b *batch) SetWithTTL(key, value string, ttl time.Duration) {
	b.pipe.Set(b.ctx, key, value, ttl)
}
