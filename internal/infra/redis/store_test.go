package redis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"quiz-engine/internal/app"
	"quiz-engine/internal/domain"
)

func TestStoreWindowExpiresWithTTL(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetWithTTL(ctx, "user:u1:quiz:1:question_time:q1", "100", 20*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("user:u1:quiz:1:question_time:q1"); ttl != 20*time.Second {
		t.Fatalf("expected 20s ttl, got %v", ttl)
	}

	mr.FastForward(21 * time.Second)
	if _, ok, err := store.Get(ctx, "user:u1:quiz:1:question_time:q1"); err != nil || ok {
		t.Fatalf("expected window gone, ok=%v err=%v", ok, err)
	}
}

func TestStoreSetFieldsIfAbsentKeepsFirstWrite(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	created, err := store.SetFieldsIfAbsent(ctx, "quiz:1:question:q1", map[string]string{
		"question_text":  "2+2?",
		"correct_answer": "4",
	}, time.Hour)
	if err != nil || !created {
		t.Fatalf("expected create, created=%v err=%v", created, err)
	}
	created, err = store.SetFieldsIfAbsent(ctx, "quiz:1:question:q1", map[string]string{
		"question_text":  "changed",
		"correct_answer": "5",
	}, time.Hour)
	if err != nil || created {
		t.Fatalf("expected no-op, created=%v err=%v", created, err)
	}

	if got := mr.HGet("quiz:1:question:q1", "correct_answer"); got != "4" {
		t.Fatalf("expected first answer kept, got %q", got)
	}
	if ttl := mr.TTL("quiz:1:question:q1"); ttl != time.Hour {
		t.Fatalf("expected hour ttl, got %v", ttl)
	}
}

func TestStoreConcurrentSetAddHasSingleWinner(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := store.SetAdd(ctx, "user:u1:quiz:1:answered", "q1")
			if err != nil {
				t.Errorf("sadd: %v", err)
				return
			}
			if added {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestStoreAtomicAppliesBatch(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	err := store.Atomic(ctx, func(b app.Batch) {
		b.IncrementField("quiz:1:votes:q1", "B", 1)
		b.SetAdd("user:u1:quiz:1:answered", "q1")
		b.SortedSetIncrement("quiz:1:rankings:correct", "u1", 1)
		b.SortedSetSet("quiz:1:rankings:fastest", "u1", 5)
		b.SetWithTTL("quiz:1:response_time:q1:u1", "5", time.Hour)
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}

	if got := mr.HGet("quiz:1:votes:q1", "B"); got != "1" {
		t.Fatalf("expected one vote, got %q", got)
	}
	if ok, _ := mr.SIsMember("user:u1:quiz:1:answered", "q1"); !ok {
		t.Fatalf("expected answered mark")
	}
	if score, _ := mr.ZScore("quiz:1:rankings:fastest", "u1"); score != 5 {
		t.Fatalf("expected fastest 5, got %v", score)
	}
	if ttl := mr.TTL("quiz:1:response_time:q1:u1"); ttl != time.Hour {
		t.Fatalf("expected sample ttl, got %v", ttl)
	}
}

func TestStoreSortedSetRangeAscending(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	_ = store.SortedSetSet(ctx, "board", "bob", 7)
	_ = store.SortedSetSet(ctx, "board", "alice", 3)
	if _, err := store.SortedSetIncrement(ctx, "board", "alice", 1); err != nil {
		t.Fatalf("zincrby: %v", err)
	}

	members, err := store.SortedSetRangeWithScores(ctx, "board", 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(members) != 2 || members[0] != (app.ScoredMember{Member: "alice", Score: 4}) || members[1].Member != "bob" {
		t.Fatalf("unexpected order %+v", members)
	}
}

func TestStoreListKeysScansPattern(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"quiz:1:votes:q1", "quiz:1:votes:q2", "quiz:2:votes:q1"} {
		if _, err := store.IncrementField(ctx, key, "A", 1); err != nil {
			t.Fatalf("hincrby: %v", err)
		}
	}

	keys, err := store.ListKeys(ctx, "quiz:1:votes:*")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "quiz:1:votes:q1" || keys[1] != "quiz:1:votes:q2" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestStoreListKeysEscapedPattern(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"quiz:q*:votes:1", "quiz:q1:votes:1", "quiz:q1:votes:team/a"} {
		if _, err := store.IncrementField(ctx, key, "A", 1); err != nil {
			t.Fatalf("hincrby: %v", err)
		}
	}

	keys, err := store.ListKeys(ctx, `quiz:q\*:votes:*`)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "quiz:q*:votes:1" {
		t.Fatalf("escaped star matched %v", keys)
	}

	keys, err = store.ListKeys(ctx, "quiz:q1:votes:*")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected slash id listed, got %v", keys)
	}
}

func TestStoreErrorsWhenUnreachable(t *testing.T) {
	mr, store := newTestStore(t)
	mr.Close()

	_, err := store.Exists(context.Background(), "anything")
	if err == nil {
		t.Fatalf("expected error from closed server")
	}
}

func TestQuizServiceOnRedis(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	now := time.Unix(100, 0)
	clock := func() time.Time { return now }
	service := app.NewQuizService(store, app.DefaultSettings(), app.WithClock(clock))

	if _, err := service.CreateQuestion(ctx, domain.Question{QuizID: "1", QuestionID: "q1", Text: "Pick B", CorrectAnswer: "B"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.StartQuestion(ctx, "alice", "1", "q1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	now = time.Unix(105, 0)
	receipt, err := service.SubmitAnswer(ctx, "alice", "1", "q1", "B")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.ElapsedSeconds != 5 || !receipt.Correct {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if _, err := service.SubmitAnswer(ctx, "alice", "1", "q1", "B"); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	if score, _ := mr.ZScore("quiz:1:rankings:correct_fastest", "alice"); score != 1.0/6.0 {
		t.Fatalf("expected 1/6, got %v", score)
	}

	// Store-level expiry alone rejects a late answer.
	if _, err := service.StartQuestion(ctx, "bob", "1", "q1"); err != nil {
		t.Fatalf("start bob: %v", err)
	}
	mr.FastForward(21 * time.Second)
	if _, err := service.SubmitAnswer(ctx, "bob", "1", "q1", "B"); !errors.Is(err, domain.ErrAnswerWindowExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	snapshot, err := service.Rankings(ctx, "1")
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if snapshot.VotesByQuestion["q1"]["B"] != 1 || snapshot.MeanResponseTime != 5 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewStore(client)
}
