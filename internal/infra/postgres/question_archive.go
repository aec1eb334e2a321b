package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-engine/internal/domain"
)

// QuestionArchive keeps a durable copy of every question in Postgres so they
// survive the store's 30-day retention.
type QuestionArchive struct {
	pool *pgxpool.Pool
}

func NewQuestionArchive(pool *pgxpool.Pool) *QuestionArchive {
	return &QuestionArchive{pool: pool}
}

// SaveQuestion inserts q unless it exists; the first write is never replaced.
func (a *QuestionArchive) SaveQuestion(ctx context.Context, q domain.Question) (bool, error) {
	tag, err := a.pool.Exec(ctx,
		`INSERT INTO questions (quiz_id, question_id, question_text, correct_answer)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (quiz_id, question_id) DO NOTHING`,
		q.QuizID, q.QuestionID, q.Text, q.CorrectAnswer)
	if err != nil {
		return false, fmt.Errorf("archive question: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (a *QuestionArchive) LoadQuestion(ctx context.Context, quizID, questionID string) (domain.Question, error) {
	q := domain.Question{QuizID: quizID, QuestionID: questionID}
	err := a.pool.QueryRow(ctx,
		`SELECT question_text, correct_answer FROM questions WHERE quiz_id=$1 AND question_id=$2`,
		quizID, questionID).Scan(&q.Text, &q.CorrectAnswer)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return q, nil
}
