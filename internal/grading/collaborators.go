package grading

import (
	"context"

	"quiz-assessment-service/internal/domain"
)

// ShortAnswerGrader scores free-text answers that cannot be matched exactly.
type ShortAnswerGrader interface {
	GradeShortAnswer(ctx context.Context, req ShortAnswerRequest) (ShortAnswerResult, error)
}

// Advisor produces study suggestions for a graded submission.
type Advisor interface {
	SuggestImprovements(ctx context.Context, summary PerformanceSummary) ([]string, error)
}

type ShortAnswerRequest struct {
	Question        string
	Type            domain.QuestionType
	ReferenceAnswer string
	StudentAnswer   string
	MaxPoints       float64
}

// ShortAnswerResult is the collaborator's verdict. Score is clamped to
// [0, MaxPoints] by the engine.
type ShortAnswerResult struct {
	Score      float64
	Feedback   string
	Confidence float64
}

// PerformanceSummary is the view of an evaluation handed to the Advisor.
type PerformanceSummary struct {
	Percentage     float64
	CorrectAnswers int
	TotalQuestions int
	Strengths      []string
	Weaknesses     []string
	WeakTopics     []string
	TypeScores     map[domain.QuestionType]float64
}
