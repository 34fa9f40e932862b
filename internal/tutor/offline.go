package tutor

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/grading"
	"quiz-assessment-service/internal/scoring"
)

const continuePracticing = "Continue practicing regularly to maintain and improve your skills."

// Offline is a deterministic tutor: identical inputs always produce
// identical grades and hints. It backs the testing environment and any
// deployment without AI credentials.
type Offline struct{}

func NewOffline() *Offline { return &Offline{} }

func (*Offline) Name() string { return "offline" }

func (*Offline) GradeShortAnswer(_ context.Context, req grading.ShortAnswerRequest) (grading.ShortAnswerResult, error) {
	rng := seeded(req.Question, req.ReferenceAnswer, req.StudentAnswer)
	answer := strings.TrimSpace(req.StudentAnswer)
	lower := strings.ToLower(answer)
	maxPts := req.MaxPoints

	var score float64
	var feedback string
	switch {
	case answer == "":
		feedback = "No answer provided."
	case len(answer) < 10:
		score = maxPts * 0.3
		feedback = "Answer is too brief. Provide more detail."
	case strings.Contains(lower, "wrong") || strings.Contains(lower, "incorrect"):
		score = maxPts * 0.2
		feedback = "Answer contains incorrect information."
	default:
		base := min(float64(len(req.StudentAnswer))/100, 0.8)
		variation := uniform(rng, -0.2, 0.2)
		score = scoring.Clamp(maxPts*(base+variation), 0, maxPts)
		switch {
		case score > maxPts*0.8:
			feedback = "Excellent answer with good understanding."
		case score > maxPts*0.6:
			feedback = "Good answer but could be more comprehensive."
		case score > maxPts*0.4:
			feedback = "Adequate answer but missing key points."
		default:
			feedback = "Weak answer. Review the topic and try again."
		}
	}
	return grading.ShortAnswerResult{
		Score:      scoring.Round(score, 2),
		Feedback:   feedback,
		Confidence: scoring.Round(uniform(rng, 0.7, 0.95), 2),
	}, nil
}

func (*Offline) SuggestImprovements(_ context.Context, summary grading.PerformanceSummary) ([]string, error) {
	var suggestions []string
	switch {
	case summary.Percentage < 40:
		suggestions = append(suggestions, "Review fundamental concepts and practice more basic questions before attempting advanced topics.")
	case summary.Percentage < 60:
		suggestions = append(suggestions, "Focus on understanding core concepts better and practice applying them to different scenarios.")
	case summary.Percentage < 80:
		suggestions = append(suggestions, "Work on attention to detail and consider reviewing questions more carefully before answering.")
	default:
		suggestions = append(suggestions, "Great job! Continue practicing with more challenging questions to deepen your understanding.")
	}

	if len(summary.WeakTopics) > 0 {
		topics := summary.WeakTopics
		if len(topics) > 3 {
			topics = topics[:3]
		}
		suggestions = append(suggestions, fmt.Sprintf(
			"Spend extra time studying these topics: %s. Consider additional practice questions in these areas.",
			strings.Join(topics, ", ")))
	} else {
		suggestions = append(suggestions, "Your understanding appears consistent across topics. Focus on time management and advanced problem-solving techniques.")
	}

	mcq := summary.TypeScores[domain.QuestionMultipleChoice]
	written := summary.TypeScores[domain.QuestionShortAnswer]
	switch {
	case mcq < written:
		suggestions = append(suggestions, "Practice more multiple-choice strategies such as elimination and keyword identification.")
	case written < mcq:
		suggestions = append(suggestions, "Work on providing more detailed and structured answers for written responses.")
	}

	if len(suggestions) < 2 {
		suggestions = append(suggestions, continuePracticing)
	}
	return suggestions[:2], nil
}

func (*Offline) Hint(_ context.Context, req HintRequest) (string, error) {
	rng := seeded(req.Question, string(req.Type), string(req.Difficulty), req.Topic)
	templates := []string{
		fmt.Sprintf("Think about the fundamental concepts of %s.", req.Topic),
		fmt.Sprintf("Consider how %s relates to the broader subject area.", req.Topic),
		fmt.Sprintf("Review the key definitions and principles of %s.", req.Topic),
		fmt.Sprintf("What are the main characteristics or properties of %s?", req.Topic),
		fmt.Sprintf("How is %s typically used or applied in practice?", req.Topic),
	}
	switch req.Type {
	case domain.QuestionMultipleChoice:
		templates = append(templates,
			"Look for keywords in the question that might point to the answer.",
			"Try to eliminate obviously incorrect options first.",
			"Consider which option best fits the context of the question.",
		)
	case domain.QuestionTrueFalse:
		templates = append(templates,
			"Think about whether the statement is always true or if there are exceptions.",
			"Consider the exact wording of the statement carefully.",
		)
	case domain.QuestionShortAnswer, domain.QuestionEssay:
		templates = append(templates,
			"Structure your answer with clear main points.",
			"Include specific examples or details to support your answer.",
			"Make sure to address all parts of the question.",
		)
	}
	return templates[rng.IntN(len(templates))], nil
}

func seeded(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
