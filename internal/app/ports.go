package app

import (
	"context"
	"time"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/tutor"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// Evict drops any cached copy so the next GetQuiz reads the backing store.
	Evict(ctx context.Context, quizID string) error
}

// QuizDeleter removes a quiz and everything that belongs to it.
type QuizDeleter interface {
	DeleteQuiz(ctx context.Context, quizID string) error
}

// SubmissionRepository persists submissions and their evaluations.
//
// Implementations must reject AddAnswer for a question that is already
// answered with domain.ErrDuplicateAnswer, and AddAnswer/Complete on a
// completed submission with domain.ErrSubmissionCompleted.
type SubmissionRepository interface {
	Create(ctx context.Context, sub domain.Submission) error
	Get(ctx context.Context, id string) (domain.Submission, error)
	// FindActive returns the open submission of a user for a quiz, or
	// domain.ErrSubmissionNotFound.
	FindActive(ctx context.Context, userID, quizID string) (domain.Submission, error)
	AddAnswer(ctx context.Context, submissionID string, answer domain.Answer) error
	Complete(ctx context.Context, submissionID string, eval domain.Evaluation, submittedAt time.Time) error
	// ListByUser returns completed submissions, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Submission, error)
}

// HintCounter tracks hint usage per (user, question).
type HintCounter interface {
	// Acquire reserves one hint. ok is false, and nothing is reserved, once
	// limit hints have been used.
	Acquire(ctx context.Context, userID, questionID string, limit int) (used int, ok bool, err error)
	// Release gives back a reservation that did not produce a hint.
	Release(ctx context.Context, userID, questionID string) error
	Count(ctx context.Context, userID, questionID string) (int, error)
	Reset(ctx context.Context, userID, questionID string) error
}

// Hinter generates a hint when a question carries none of its own.
type Hinter interface {
	Hint(ctx context.Context, req tutor.HintRequest) (string, error)
}
