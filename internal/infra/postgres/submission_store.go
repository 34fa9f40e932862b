package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-assessment-service/internal/domain"
)

const submissionColumns = `id, user_id, display_name, quiz_id, is_completed, started_at, submitted_at, answers, evaluation`

// SubmissionStore persists submissions with answers and evaluation as JSONB.
// A partial unique index allows one open submission per (user, quiz).
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) error {
	answers, err := json.Marshal(nonNilAnswers(sub.Answers))
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	var eval *string
	if sub.Evaluation != nil {
		raw, err := json.Marshal(sub.Evaluation)
		if err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}
		v := string(raw)
		eval = &v
	}
	var submittedAt *time.Time
	if !sub.SubmittedAt.IsZero() {
		submittedAt = &sub.SubmittedAt
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb)`,
		sub.ID, sub.UserID, sub.DisplayName, sub.QuizID, sub.Completed, sub.StartedAt, submittedAt, string(answers), eval)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) Get(ctx context.Context, id string) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id)
	return scanSubmission(row)
}

func (s *SubmissionStore) FindActive(ctx context.Context, userID, quizID string) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE user_id=$1 AND quiz_id=$2 AND NOT is_completed`,
		userID, quizID)
	return scanSubmission(row)
}

func (s *SubmissionStore) AddAnswer(ctx context.Context, submissionID string, answer domain.Answer) error {
	return s.mutateOpen(ctx, submissionID, func(sub *domain.Submission) error {
		if sub.Answered(answer.QuestionID) {
			return domain.ErrDuplicateAnswer
		}
		answer.SubmissionID = submissionID
		sub.Answers = append(sub.Answers, answer)
		return nil
	})
}

func (s *SubmissionStore) Complete(ctx context.Context, submissionID string, eval domain.Evaluation, submittedAt time.Time) error {
	return s.mutateOpen(ctx, submissionID, func(sub *domain.Submission) error {
		sub.Completed = true
		sub.SubmittedAt = submittedAt
		sub.Evaluation = &eval
		return nil
	})
}

func (s *SubmissionStore) ListByUser(ctx context.Context, userID string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE user_id=$1 AND is_completed
		 ORDER BY submitted_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// mutateOpen applies fn to an open submission locked with SELECT ... FOR UPDATE
// and writes it back.
func (s *SubmissionStore) mutateOpen(ctx context.Context, id string, fn func(*domain.Submission) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sub, err := scanSubmission(tx.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return err
	}
	if sub.Completed {
		return domain.ErrSubmissionCompleted
	}
	if err := fn(&sub); err != nil {
		return err
	}

	answers, err := json.Marshal(nonNilAnswers(sub.Answers))
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	var eval *string
	if sub.Evaluation != nil {
		raw, err := json.Marshal(sub.Evaluation)
		if err != nil {
			return fmt.Errorf("marshal evaluation: %w", err)
		}
		v := string(raw)
		eval = &v
	}
	var submittedAt *time.Time
	if !sub.SubmittedAt.IsZero() {
		submittedAt = &sub.SubmittedAt
	}
	_, err = tx.Exec(ctx, `
		UPDATE submissions
		SET is_completed=$2, submitted_at=$3, answers=$4::jsonb, evaluation=$5::jsonb
		WHERE id=$1`,
		id, sub.Completed, submittedAt, string(answers), eval)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return tx.Commit(ctx)
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var (
		sub         domain.Submission
		submittedAt *time.Time
		answers     []byte
		eval        []byte
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.DisplayName, &sub.QuizID, &sub.Completed, &sub.StartedAt, &submittedAt, &answers, &eval)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	if submittedAt != nil {
		sub.SubmittedAt = *submittedAt
	}
	if err := json.Unmarshal(answers, &sub.Answers); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	if len(eval) > 0 {
		sub.Evaluation = &domain.Evaluation{}
		if err := json.Unmarshal(eval, sub.Evaluation); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal evaluation: %w", err)
		}
	}
	return sub, nil
}

func nonNilAnswers(answers []domain.Answer) []domain.Answer {
	if answers == nil {
		return []domain.Answer{}
	}
	return answers
}
