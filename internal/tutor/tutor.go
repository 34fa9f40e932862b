// Package tutor implements the AI collaborators used by grading and hints:
// short-answer grading, study suggestions and question hints.
package tutor

import (
	"context"

	"go.uber.org/zap"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/grading"
	"quiz-assessment-service/internal/llm"
	"quiz-assessment-service/internal/metrics"
)

// EnvTesting forces the offline tutor regardless of configured keys.
const EnvTesting = "testing"

type Tutor interface {
	grading.ShortAnswerGrader
	grading.Advisor
	Hint(ctx context.Context, req HintRequest) (string, error)
	Name() string
}

type HintRequest struct {
	Question   string
	Type       domain.QuestionType
	Difficulty domain.Difficulty
	Topic      string
}

// New selects a tutor once at start-up. Providers are tried in the order
// returned by cfg.Candidates; the offline tutor is the last resort.
func New(ctx context.Context, cfg llm.Config, env string, logger *zap.Logger, m *metrics.Metrics) Tutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if env == EnvTesting {
		logger.Info("using offline tutor", zap.String("reason", "testing environment"))
		return NewOffline()
	}
	for _, name := range cfg.Candidates() {
		if name == llm.ProviderOffline {
			break
		}
		provider, err := llm.NewProvider(ctx, name, cfg, logger, m)
		if err != nil {
			logger.Warn("ai provider unavailable", zap.String("provider", name), zap.Error(err))
			continue
		}
		logger.Info("using ai tutor", zap.String("provider", name), zap.String("model", provider.ModelID()))
		return NewLLMTutor(name, provider, logger)
	}
	logger.Info("using offline tutor", zap.String("reason", "no ai provider configured"))
	return NewOffline()
}
