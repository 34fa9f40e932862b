package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quiz-assessment-service/internal/metrics"
)

func TestCandidatesPriority(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OpenAI.APIKey = "sk-short"
	cfg.Gemini.APIKey = "gem-key"
	cfg.Anthropic.APIKey = "ant-key"
	assert.Equal(t, []string{ProviderGemini, ProviderAnthropic}, cfg.Candidates())

	cfg.OpenAI.APIKey = "sk-0123456789abcdefghijklmnop"
	assert.Equal(t, []string{ProviderOpenAI, ProviderGemini, ProviderAnthropic}, cfg.Candidates())

	cfg.Provider = ProviderAnthropic
	assert.Equal(t, []string{ProviderAnthropic}, cfg.Candidates())

	cfg.Provider = ProviderNone
	assert.Empty(t, cfg.Candidates())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Provider = ProviderGemini
	assert.Error(t, cfg.Validate())
	cfg.Gemini.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "bard"
	assert.Error(t, cfg.Validate())
}

func TestApplyEnvKeepsExplicitKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("GEMINI_API_KEY", "gem-env")
	cfg := DefaultConfig()
	cfg.OpenAI.APIKey = "explicit"
	cfg.ApplyEnv()
	assert.Equal(t, "explicit", cfg.OpenAI.APIKey)
	assert.Equal(t, "gem-env", cfg.Gemini.APIKey)
}

func TestNewProviderRejectsMissingKey(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderOpenAI, DefaultConfig(), zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), "bard", DefaultConfig(), zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestInstrumentationRecordsPurpose(t *testing.T) {
	m := metrics.New()
	s := NewScripted(Reply{Content: json.RawMessage(`{}`)}, down)
	p := WithInstrumentation(s, nil, m)
	ctx := WithPurpose(context.Background(), "grade")

	_, err := p.Generate(ctx, Request{})
	require.NoError(t, err)
	_, err = p.Generate(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, "scripted", p.ModelID())
	assert.Equal(t, Purpose("grade"), PurposeFrom(ctx))
	assert.Equal(t, Purpose("unknown"), PurposeFrom(context.Background()))
}
