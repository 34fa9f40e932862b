package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/leaderboard"
)

const entryColumns = `user_id, display_name, subject, grade_level, total_quizzes, total_questions_answered,
	total_correct_answers, best_score, best_percentage, average_score, first_quiz_at, last_quiz_at`

// LeaderboardStore persists leaderboard entries. Upsert locks the row with
// SELECT ... FOR UPDATE; two first-time inserts racing on the same key
// surface as domain.ErrConflict and are retried by the aggregator.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

func (s *LeaderboardStore) Entries(ctx context.Context, subject, grade string) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries
		 WHERE subject=$1 AND grade_level=$2
		 ORDER BY first_quiz_at, user_id`, subject, grade)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LeaderboardStore) Upsert(ctx context.Context, key leaderboard.Key, mutate func(*domain.LeaderboardEntry) domain.LeaderboardEntry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := scanEntry(tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries
		 WHERE user_id=$1 AND subject=$2 AND grade_level=$3 FOR UPDATE`,
		key.UserID, key.Subject, key.GradeLevel))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		next := mutate(nil)
		_, err = tx.Exec(ctx, `INSERT INTO leaderboard_entries (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, entryArgs(key, next)...)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
	case err != nil:
		return err
	default:
		next := mutate(&current)
		_, err = tx.Exec(ctx, `UPDATE leaderboard_entries SET
			display_name=$2, total_quizzes=$5, total_questions_answered=$6, total_correct_answers=$7,
			best_score=$8, best_percentage=$9, average_score=$10, first_quiz_at=$11, last_quiz_at=$12
			WHERE user_id=$1 AND subject=$3 AND grade_level=$4`, entryArgs(key, next)...)
	}
	if err != nil {
		return fmt.Errorf("write leaderboard entry: %w", err)
	}
	return tx.Commit(ctx)
}

func entryArgs(key leaderboard.Key, e domain.LeaderboardEntry) []interface{} {
	return []interface{}{
		key.UserID, e.DisplayName, key.Subject, key.GradeLevel,
		e.TotalQuizzes, e.TotalQuestionsAnswered, e.TotalCorrectAnswers,
		e.BestScore, e.BestPercentage, e.AverageScore, e.FirstQuizAt, e.LastQuizAt,
	}
}

// scanEntry wraps with %w so callers can still match pgx.ErrNoRows.
func scanEntry(row pgx.Row) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := row.Scan(&e.UserID, &e.DisplayName, &e.Subject, &e.GradeLevel,
		&e.TotalQuizzes, &e.TotalQuestionsAnswered, &e.TotalCorrectAnswers,
		&e.BestScore, &e.BestPercentage, &e.AverageScore, &e.FirstQuizAt, &e.LastQuizAt)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("scan leaderboard entry: %w", err)
	}
	return e, nil
}
