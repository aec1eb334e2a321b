package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-engine/internal/domain"
)

// QuestionArchive is a durable copy of questions that outlives the store TTL
// (e.g. Postgres).
type QuestionArchive interface {
	// SaveQuestion inserts q unless it already exists and reports whether it was inserted.
	SaveQuestion(ctx context.Context, q domain.Question) (bool, error)
	// LoadQuestion returns domain.ErrQuestionNotFound when the question is unknown.
	LoadQuestion(ctx context.Context, quizID, questionID string) (domain.Question, error)
}

// QuestionRegistry is create-once, read-many storage of questions.
// Questions are stored as: HSET quiz:{quizID}:question:{questionID} question_text .. correct_answer ..
type QuestionRegistry struct {
	store    Store
	archive  QuestionArchive
	ttl      time.Duration
	recorder Recorder
	sf       singleflight.Group
}

// NewQuestionRegistry builds a registry. archive may be nil.
func NewQuestionRegistry(store Store, ttl time.Duration, archive QuestionArchive, recorder Recorder) *QuestionRegistry {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &QuestionRegistry{
		store:    store,
		archive:  archive,
		ttl:      ttl,
		recorder: recorder,
	}
}

// Create writes q unless a question with the same quiz and question id exists.
// An existing question is never overwritten.
func (r *QuestionRegistry) Create(ctx context.Context, q domain.Question) (domain.CreateResult, error) {
	if q.QuizID == "" || q.QuestionID == "" || q.Text == "" || q.CorrectAnswer == "" {
		return 0, domain.ErrInvalidQuestion
	}

	result, err := r.create(ctx, q)
	if err != nil {
		return 0, err
	}
	r.recorder.QuestionCreated(result.String())
	return result, nil
}

func (r *QuestionRegistry) create(ctx context.Context, q domain.Question) (domain.CreateResult, error) {
	key := questionKey(q.QuizID, q.QuestionID)

	if r.archive == nil {
		created, err := r.store.SetFieldsIfAbsent(ctx, key, questionFields(q), r.ttl)
		if err != nil {
			return 0, storeErr("create question", err)
		}
		if !created {
			return domain.AlreadyExists, nil
		}
		return domain.Created, nil
	}

	// The archive decides who wrote first; the store is a cache in front of it.
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return 0, storeErr("check question", err)
	}
	if exists {
		return domain.AlreadyExists, nil
	}

	inserted, err := r.archive.SaveQuestion(ctx, q)
	if err != nil {
		return 0, err
	}
	if !inserted {
		if _, err := r.loadFromArchive(ctx, q.QuizID, q.QuestionID); err != nil {
			return 0, err
		}
		return domain.AlreadyExists, nil
	}
	if _, err := r.store.SetFieldsIfAbsent(ctx, key, questionFields(q), r.ttl); err != nil {
		return 0, storeErr("create question", err)
	}
	return domain.Created, nil
}

// Get returns the question or domain.ErrQuestionNotFound.
func (r *QuestionRegistry) Get(ctx context.Context, quizID, questionID string) (domain.Question, error) {
	fields, err := r.store.GetFields(ctx, questionKey(quizID, questionID))
	if err != nil {
		return domain.Question{}, storeErr("get question", err)
	}
	if len(fields) > 0 {
		return questionFromFields(quizID, questionID, fields), nil
	}
	if r.archive == nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return r.loadFromArchive(ctx, quizID, questionID)
}

// correctAnswer returns the stored correct answer; ok is false if the question is gone.
func (r *QuestionRegistry) correctAnswer(ctx context.Context, quizID, questionID string) (string, bool, error) {
	answer, ok, err := r.store.GetField(ctx, questionKey(quizID, questionID), fieldCorrectAnswer)
	if err != nil {
		return "", false, storeErr("get correct answer", err)
	}
	if ok || r.archive == nil {
		return answer, ok, nil
	}
	q, err := r.loadFromArchive(ctx, quizID, questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return q.CorrectAnswer, true, nil
}

// loadFromArchive reads the archived question and re-warms the store. Concurrent
// misses for the same question share one archive read.
func (r *QuestionRegistry) loadFromArchive(ctx context.Context, quizID, questionID string) (domain.Question, error) {
	key := questionKey(quizID, questionID)
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		q, err := r.archive.LoadQuestion(ctx, quizID, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		if _, err := r.store.SetFieldsIfAbsent(ctx, key, questionFields(q), r.ttl); err != nil {
			return domain.Question{}, storeErr("rewarm question", err)
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func questionFields(q domain.Question) map[string]string {
	return map[string]string{
		fieldQuestionText:  q.Text,
		fieldCorrectAnswer: q.CorrectAnswer,
	}
}

func questionFromFields(quizID, questionID string, fields map[string]string) domain.Question {
	return domain.Question{
		QuizID:        quizID,
		QuestionID:    questionID,
		Text:          fields[fieldQuestionText],
		CorrectAnswer: fields[fieldCorrectAnswer],
	}
}
