package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound is returned when no matching submission exists.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrNotRanked is returned when the user has no leaderboard entry in the partition.
	ErrNotRanked = errors.New("user not ranked")

	// ErrInvalidSubmission wraps every input problem that rejects a whole submission.
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrDuplicateAnswer   = errors.New("question answered more than once")
	ErrEmptyAnswer       = errors.New("answer has neither text nor selected option")
	ErrNegativeHints     = errors.New("hints used must not be negative")

	ErrQuizNotAdaptive     = errors.New("quiz is not adaptive")
	ErrQuizEmpty           = errors.New("quiz has no questions")
	ErrSubmissionCompleted = errors.New("submission already completed")
	ErrHintLimitReached    = errors.New("hint limit reached for question")
	ErrHintUnavailable     = errors.New("hint unavailable")
	ErrQuestionAnswered    = errors.New("question already answered in this attempt")
	ErrHintResetDisabled   = errors.New("hint reset is only available outside production")

	// ErrConflict signals a lost race on a serialised write; callers may retry.
	ErrConflict = errors.New("concurrent update conflict")
)
