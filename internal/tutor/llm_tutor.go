package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quiz-assessment-service/internal/grading"
	"quiz-assessment-service/internal/llm"
)

const (
	purposeGrade   llm.Purpose = "grade"
	purposeSuggest llm.Purpose = "suggest"
	purposeHint    llm.Purpose = "hint"
)

var gradeSchema = &llm.Schema{
	Name:        "short_answer_grade",
	Description: "Grade for a free-text quiz answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":      map[string]any{"type": "number", "minimum": 0},
			"feedback":   map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required":             []string{"score", "feedback", "confidence"},
		"additionalProperties": false,
	},
}

var suggestionsSchema = &llm.Schema{
	Name:        "improvement_suggestions",
	Description: "Actionable study suggestions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"suggestions": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
		},
		"required":             []string{"suggestions"},
		"additionalProperties": false,
	},
}

var hintSchema = &llm.Schema{
	Name:        "question_hint",
	Description: "A hint that does not reveal the answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"hint": map[string]any{"type": "string"},
		},
		"required":             []string{"hint"},
		"additionalProperties": false,
	},
}

// LLMTutor asks a language model for grades, suggestions and hints.
type LLMTutor struct {
	name     string
	provider llm.Provider
	logger   *zap.Logger
}

func NewLLMTutor(name string, provider llm.Provider, logger *zap.Logger) *LLMTutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMTutor{name: name, provider: provider, logger: logger}
}

func (t *LLMTutor) Name() string { return t.name }

func (t *LLMTutor) GradeShortAnswer(ctx context.Context, req grading.ShortAnswerRequest) (grading.ShortAnswerResult, error) {
	prompt := fmt.Sprintf(`Grade this student's answer to a %s quiz question.

Question: %s
Expected Answer: %s
Student Answer: %s
Maximum Points: %g

Score from 0 to %g considering accuracy, completeness, demonstrated understanding and clarity.
Give specific feedback for the student and your confidence from 0 to 1.`,
		req.Type.Label(), req.Question, req.ReferenceAnswer, req.StudentAnswer, req.MaxPoints, req.MaxPoints)

	resp, err := t.provider.Generate(llm.WithPurpose(ctx, purposeGrade), llm.Request{
		System:      "You are an expert educator grading student responses.",
		Prompt:      prompt,
		Schema:      gradeSchema,
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return grading.ShortAnswerResult{}, fmt.Errorf("grade short answer: %w", err)
	}
	var out struct {
		Score      float64 `json:"score"`
		Feedback   string  `json:"feedback"`
		Confidence float64 `json:"confidence"`
	}
	if err := llm.Decode(resp, &out); err != nil {
		return grading.ShortAnswerResult{}, fmt.Errorf("grade short answer: %w", err)
	}
	return grading.ShortAnswerResult{Score: out.Score, Feedback: out.Feedback, Confidence: out.Confidence}, nil
}

func (t *LLMTutor) SuggestImprovements(ctx context.Context, summary grading.PerformanceSummary) ([]string, error) {
	performance, err := json.MarshalIndent(map[string]any{
		"percentage":      summary.Percentage,
		"correct_answers": summary.CorrectAnswers,
		"total_questions": summary.TotalQuestions,
		"strengths":       summary.Strengths,
		"weaknesses":      summary.Weaknesses,
		"weak_topics":     summary.WeakTopics,
		"question_types":  summary.TypeScores,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode performance: %w", err)
	}
	prompt := fmt.Sprintf(`Analyze this student's quiz performance and provide exactly 2 specific improvement suggestions.

Performance Data:
%s

Each suggestion should be specific, actionable, based on the data and encouraging but honest.`, performance)

	resp, err := t.provider.Generate(llm.WithPurpose(ctx, purposeSuggest), llm.Request{
		System:      "You are an expert educational advisor.",
		Prompt:      prompt,
		Schema:      suggestionsSchema,
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest improvements: %w", err)
	}
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := llm.Decode(resp, &out); err != nil {
		return nil, fmt.Errorf("suggest improvements: %w", err)
	}
	suggestions := make([]string, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions, nil
}

func (t *LLMTutor) Hint(ctx context.Context, req HintRequest) (string, error) {
	prompt := fmt.Sprintf(`Generate a helpful hint for this quiz question without revealing the answer.

Question: %s
Type: %s
Difficulty: %s
Topic: %s

The hint should guide thinking in the right direction, suit the difficulty level and help the student learn the concept.`,
		req.Question, req.Type.Label(), req.Difficulty, req.Topic)

	resp, err := t.provider.Generate(llm.WithPurpose(ctx, purposeHint), llm.Request{
		System:      "You are a helpful tutor providing hints to students.",
		Prompt:      prompt,
		Schema:      hintSchema,
		MaxTokens:   150,
		Temperature: 0.5,
	})
	if err != nil {
		t.logger.Warn("hint generation failed, using template", zap.String("topic", req.Topic), zap.Error(err))
		return fallbackHint(req), nil
	}
	var out struct {
		Hint string `json:"hint"`
	}
	if err := llm.Decode(resp, &out); err != nil || strings.TrimSpace(out.Hint) == "" {
		return fallbackHint(req), nil
	}
	return strings.TrimSpace(out.Hint), nil
}

func fallbackHint(req HintRequest) string {
	return fmt.Sprintf("Think about the key concepts related to %s. Consider the %s level approach to this problem.", req.Topic, req.Difficulty)
}
