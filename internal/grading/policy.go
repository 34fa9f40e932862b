package grading

import "time"

// Policy carries the grading tunables.
type Policy struct {
	// PassRatio is the fraction of max points at which a subjective answer counts as correct.
	PassRatio float64
	// FallbackCredit is the fraction of max points awarded when the AI grader is unavailable.
	FallbackCredit float64
	// HintPenalty is deducted per hint as a fraction of max points.
	HintPenalty float64
	// NumericTolerance bounds numeric token comparison.
	NumericTolerance float64
	// ShortCircuit grades exact and numeric matches without calling the AI grader.
	ShortCircuit bool
	// Timeout bounds each collaborator call.
	Timeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		PassRatio:        0.6,
		FallbackCredit:   0.5,
		HintPenalty:      0.1,
		NumericTolerance: 1e-6,
		ShortCircuit:     true,
		Timeout:          15 * time.Second,
	}
}

const (
	feedbackNoAnswer    = "No answer provided"
	feedbackUnavailable = "Automatic grading unavailable. Manual review may be needed."

	fallbackConfidence = 0.5

	strongRatio = 0.8
	weakRatio   = 0.6
	weakTopic   = 60.0
	maxFindings = 3
	minAdvice   = 2
)

var (
	defaultStrength = "Shows effort and engagement with the material"
	defaultWeakness = "Overall performance is good with room for minor improvements"

	paddingSuggestion  = "Continue practicing regularly to maintain and improve your skills."
	genericSuggestions = []string{
		"Review the questions you missed together with their explanations.",
		paddingSuggestion,
	}
)
