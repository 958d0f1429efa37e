package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-service/internal/domain"
)

// ResultStore persists trivia results in the trivia_results table.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Save inserts result. Writing the same id again is a no-op, so retries never duplicate a result.
func (s *ResultStore) Save(ctx context.Context, result domain.Result) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trivia_results
			(id, user_id, question_ids, selected_answers, score, total_questions, correct_answers, wrong_answers, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		result.ID, result.UserID, result.QuestionIDs, result.SelectedAnswers, result.Score,
		result.TotalQuestions, result.CorrectAnswers, result.WrongAnswers, result.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// All returns every stored result, best first. Rows written before the correct/wrong counts
// existed read as zero.
func (s *ResultStore) All(ctx context.Context) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, question_ids, selected_answers, score, total_questions,
			COALESCE(correct_answers, 0), COALESCE(wrong_answers, 0), played_at
		FROM trivia_results
		ORDER BY score DESC, played_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var r domain.Result
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.QuestionIDs, &r.SelectedAnswers, &r.Score, &r.TotalQuestions,
			&r.CorrectAnswers, &r.WrongAnswers, &r.PlayedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return results, nil
}
