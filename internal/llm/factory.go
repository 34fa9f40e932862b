package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quiz-assessment-service/internal/metrics"
)

// NewProvider builds the named provider wrapped as caller -> retry -> instrumentation -> SDK.
func NewProvider(ctx context.Context, name string, cfg Config, logger *zap.Logger, m *metrics.Metrics) (Provider, error) {
	var (
		base Provider
		err  error
	)
	switch name {
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", name, err)
	}
	return WithRetry(WithInstrumentation(base, logger, m), cfg.Retry), nil
}
