package memory

import (
	"context"
	"sync"

	"quiz-engine/internal/domain"
)

// QuestionArchive is an in-memory app.QuestionArchive (useful for tests/demos).
type QuestionArchive struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	loads     int
}

func NewQuestionArchive(seed ...domain.Question) *QuestionArchive {
	a := &QuestionArchive{questions: make(map[string]domain.Question, len(seed))}
	for _, q := range seed {
		a.questions[archiveKey(q.QuizID, q.QuestionID)] = q
	}
	return a
}

func (a *QuestionArchive) SaveQuestion(_ context.Context, q domain.Question) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := archiveKey(q.QuizID, q.QuestionID)
	if _, ok := a.questions[key]; ok {
		return false, nil
	}
	a.questions[key] = q
	return true, nil
}

func (a *QuestionArchive) LoadQuestion(_ context.Context, quizID, questionID string) (domain.Question, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads++
	if q, ok := a.questions[archiveKey(quizID, questionID)]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// Loads reports how many times LoadQuestion was called.
func (a *QuestionArchive) Loads() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loads
}

func archiveKey(quizID, questionID string) string {
	return quizID + "/" + questionID
}
