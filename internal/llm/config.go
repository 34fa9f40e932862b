package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOffline   = "offline"
	ProviderNone      = "none"
)

type Config struct {
	// Provider is one of the Provider* constants. "auto" picks the first
	// provider with a usable key in the order OpenAI, Gemini, Anthropic.
	Provider  string
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Anthropic AnthropicConfig
	Retry     RetryConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

func DefaultConfig() Config {
	return Config{
		Provider:  ProviderAuto,
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
		},
	}
}

// ApplyEnv fills missing API keys from the conventional environment variables.
func (c *Config) ApplyEnv() {
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Candidates lists the providers to try, in priority order.
func (c Config) Candidates() []string {
	switch c.Provider {
	case ProviderNone:
		return nil
	case ProviderAuto, "":
	default:
		return []string{c.Provider}
	}
	var out []string
	// Short OpenAI keys are placeholders copied from example env files.
	if len(strings.TrimSpace(c.OpenAI.APIKey)) > 20 {
		out = append(out, ProviderOpenAI)
	}
	if strings.TrimSpace(c.Gemini.APIKey) != "" {
		out = append(out, ProviderGemini)
	}
	if strings.TrimSpace(c.Anthropic.APIKey) != "" {
		out = append(out, ProviderAnthropic)
	}
	return out
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAuto, ProviderNone, ProviderOffline, "":
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("ai.openai.api_key is required for the openai provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("ai.gemini.api_key is required for the gemini provider")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ai.anthropic.api_key is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
