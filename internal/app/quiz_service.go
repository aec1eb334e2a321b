package app

import (
	"context"
	"time"

	"quiz-engine/internal/domain"
)

// QuizService contains the core quiz use cases. It holds no state of its own;
// everything lives in the injected Store.
type QuizService struct {
	store     Store
	now       func() time.Time
	questions *QuestionRegistry
	windows   *WindowManager
	ledger    *AnswerLedger
	rankings  *RankingAggregator
}

func NewQuizService(store Store, settings Settings, opts ...Option) *QuizService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	settings = settings.withDefaults()

	questions := NewQuestionRegistry(store, settings.QuestionTTL, o.archive, o.recorder)
	windows := NewWindowManager(store, questions, settings.AnswerWindow, o.now, o.recorder)
	return &QuizService{
		store:     store,
		now:       o.now,
		questions: questions,
		windows:   windows,
		ledger:    NewAnswerLedger(store, windows, questions, settings.ResponseTimeTTL, o.log, o.recorder),
		rankings:  NewRankingAggregator(store),
	}
}

// CreateQuestion stores a question unless it already exists.
func (s *QuizService) CreateQuestion(ctx context.Context, q domain.Question) (domain.CreateResult, error) {
	return s.questions.Create(ctx, q)
}

// GetQuestion fetches a question.
func (s *QuizService) GetQuestion(ctx context.Context, quizID, questionID string) (domain.Question, error) {
	return s.questions.Get(ctx, quizID, questionID)
}

// StartQuestion opens the user's answer window for a question.
func (s *QuizService) StartQuestion(ctx context.Context, userID, quizID, questionID string) (domain.OpenedWindow, error) {
	return s.windows.Open(ctx, userID, quizID, questionID)
}

// SubmitAnswer records the user's answer at the current time.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID, quizID, questionID, answer string) (domain.AnswerReceipt, error) {
	return s.ledger.Submit(ctx, domain.AnswerSubmission{
		UserID:     userID,
		QuizID:     quizID,
		QuestionID: questionID,
		Answer:     answer,
		At:         s.now().Unix(),
	})
}

// Rankings returns the ranking snapshot of a quiz.
func (s *QuizService) Rankings(ctx context.Context, quizID string) (domain.RankingSnapshot, error) {
	return s.rankings.Report(ctx, quizID)
}

// Ping checks the store is reachable.
func (s *QuizService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}
