package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"quiz-engine/internal/domain"
)

// WindowManager opens and validates per-user answer windows.
// Windows are stored as: SETEX user:{userID}:quiz:{quizID}:question_time:{questionID} {ttl} {unix seconds}
type WindowManager struct {
	store     Store
	questions *QuestionRegistry
	ttl       time.Duration
	now       func() time.Time
	recorder  Recorder
}

func NewWindowManager(store Store, questions *QuestionRegistry, ttl time.Duration, now func() time.Time, recorder Recorder) *WindowManager {
	if now == nil {
		now = time.Now
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &WindowManager{
		store:     store,
		questions: questions,
		ttl:       ttl,
		now:       now,
		recorder:  recorder,
	}
}

// Open (re)starts the answer window for the user. The last call wins: a repeated
// open resets the deadline.
func (w *WindowManager) Open(ctx context.Context, userID, quizID, questionID string) (domain.OpenedWindow, error) {
	q, err := w.questions.Get(ctx, quizID, questionID)
	if err != nil {
		return domain.OpenedWindow{}, err
	}

	start := w.now().Unix()
	if err := w.store.SetWithTTL(ctx, windowKey(userID, quizID, questionID), strconv.FormatInt(start, 10), w.ttl); err != nil {
		return domain.OpenedWindow{}, storeErr("open window", err)
	}
	w.recorder.WindowOpened()
	return domain.OpenedWindow{Question: q, StartTime: start}, nil
}

// Validate returns the whole seconds elapsed since the window opened, or
// domain.ErrAnswerWindowExpired. The window is left in place; the store TTL is
// the only thing that removes it.
func (w *WindowManager) Validate(ctx context.Context, userID, quizID, questionID string, now int64) (int64, error) {
	raw, ok, err := w.store.Get(ctx, windowKey(userID, quizID, questionID))
	if err != nil {
		return 0, storeErr("read window", err)
	}
	if !ok {
		return 0, domain.ErrAnswerWindowExpired
	}
	openedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("read window: %w: corrupt timestamp %q", domain.ErrStoreUnavailable, raw)
	}

	// Store expiry may lag, so the deadline is checked against the timestamp too.
	elapsed := now - openedAt
	if elapsed > int64(w.ttl/time.Second) {
		return 0, domain.ErrAnswerWindowExpired
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, nil
}
