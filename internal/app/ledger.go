package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-engine/internal/domain"
)

// AnswerLedger records answers exactly once and maintains the derived rankings.
type AnswerLedger struct {
	store           Store
	windows         *WindowManager
	questions       *QuestionRegistry
	responseTimeTTL time.Duration
	log             logrus.FieldLogger
	recorder        Recorder
}

func NewAnswerLedger(store Store, windows *WindowManager, questions *QuestionRegistry, responseTimeTTL time.Duration, log logrus.FieldLogger, recorder Recorder) *AnswerLedger {
	if log == nil {
		log = discardLogger()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AnswerLedger{
		store:           store,
		windows:         windows,
		questions:       questions,
		responseTimeTTL: responseTimeTTL,
		log:             log,
		recorder:        recorder,
	}
}

// Submit validates and records a single answer.
//
// The answered-mark SADD is the serialization point: of any number of concurrent
// submissions for the same (user, quiz, question) only the one that adds the
// member proceeds; the rest fail with domain.ErrDuplicateAnswer.
func (l *AnswerLedger) Submit(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerReceipt, error) {
	receipt, err := l.submit(ctx, sub)
	switch {
	case err == nil:
		l.recorder.AnswerAccepted(receipt.Correct, receipt.ElapsedSeconds)
	case errors.Is(err, domain.ErrAnswerWindowExpired):
		l.recorder.AnswerRejected("expired")
	case errors.Is(err, domain.ErrDuplicateAnswer):
		l.recorder.AnswerRejected("duplicate")
	case errors.Is(err, domain.ErrInvalidSubmission):
		l.recorder.AnswerRejected("invalid")
	default:
		l.recorder.AnswerRejected("error")
	}
	return receipt, err
}

func (l *AnswerLedger) submit(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerReceipt, error) {
	if sub.UserID == "" || sub.QuizID == "" || sub.QuestionID == "" {
		return domain.AnswerReceipt{}, domain.ErrInvalidSubmission
	}

	elapsed, err := l.windows.Validate(ctx, sub.UserID, sub.QuizID, sub.QuestionID, sub.At)
	if err != nil {
		return domain.AnswerReceipt{}, err
	}

	answered := answeredKey(sub.UserID, sub.QuizID)
	claimed, err := l.store.SetAdd(ctx, answered, sub.QuestionID)
	if err != nil {
		return domain.AnswerReceipt{}, storeErr("mark answered", err)
	}
	if !claimed {
		return domain.AnswerReceipt{}, domain.ErrDuplicateAnswer
	}

	correctAnswer, found, err := l.questions.correctAnswer(ctx, sub.QuizID, sub.QuestionID)
	if err != nil {
		l.release(ctx, answered, sub)
		return domain.AnswerReceipt{}, err
	}
	// A question that expired after the window opened scores as incorrect.
	isCorrect := 0
	if found && sub.Answer == correctAnswer {
		isCorrect = 1
	}

	err = l.store.Atomic(ctx, func(b Batch) {
		b.IncrementField(votesKey(sub.QuizID, sub.QuestionID), sub.Answer, 1)
		b.SortedSetIncrement(rankingKey(sub.QuizID, boardCorrect), sub.UserID, float64(isCorrect))
		b.SortedSetSet(rankingKey(sub.QuizID, boardFastest), sub.UserID, float64(elapsed))
		b.SortedSetIncrement(rankingKey(sub.QuizID, boardCorrectFastest), sub.UserID, float64(isCorrect)/float64(elapsed+1))
		b.SetWithTTL(responseTimeKey(sub.QuizID, sub.QuestionID, sub.UserID), strconv.FormatInt(elapsed, 10), l.responseTimeTTL)
	})
	if err != nil {
		// The transaction outcome is unknown, so the claim stays: retrying could
		// double count. Derived state may be partial.
		l.log.WithFields(logrus.Fields{
			"user_id":     sub.UserID,
			"quiz_id":     sub.QuizID,
			"question_id": sub.QuestionID,
			"error":       err.Error(),
		}).Error("answer claimed but rankings not updated")
		return domain.AnswerReceipt{}, storeErr("record answer", err)
	}

	return domain.AnswerReceipt{ElapsedSeconds: elapsed, Correct: isCorrect == 1}, nil
}

func (l *AnswerLedger) release(ctx context.Context, answered string, sub domain.AnswerSubmission) {
	if err := l.store.SetRemove(ctx, answered, sub.QuestionID); err != nil {
		l.log.WithFields(logrus.Fields{
			"user_id":     sub.UserID,
			"quiz_id":     sub.QuizID,
			"question_id": sub.QuestionID,
			"error":       err.Error(),
		}).Warn("failed to release answered mark")
	}
}
