package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quiz-assessment-service/internal/metrics"
)

type instrumentedProvider struct {
	inner   Provider
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// WithInstrumentation logs each call and records its latency under the
// purpose attached to the context.
func WithInstrumentation(p Provider, logger *zap.Logger, m *metrics.Metrics) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedProvider{inner: p, logger: logger, metrics: m}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	purpose := PurposeFrom(ctx)
	resp, err := p.inner.Generate(ctx, req)
	p.metrics.ObserveAI("llm_"+string(purpose), started, err)

	fields := []zap.Field{
		zap.String("model", p.inner.ModelID()),
		zap.String("purpose", string(purpose)),
		zap.Duration("latency", time.Since(started)),
	}
	if resp != nil {
		fields = append(fields,
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
		)
	}
	if err != nil {
		p.logger.Warn("llm request failed", append(fields, zap.Error(err))...)
	} else {
		p.logger.Debug("llm request", fields...)
	}
	return resp, err
}

func (p *instrumentedProvider) ModelID() string { return p.inner.ModelID() }
