package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quiz-assessment-service/internal/grading"
	"quiz-assessment-service/internal/llm"
	"quiz-assessment-service/internal/logging"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTesting     = "testing"
)

type Config struct {
	Env    string `yaml:"env"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Leaderboard struct {
		TTL string `yaml:"ttl"`
	} `yaml:"leaderboard"`
	Grading struct {
		PassRatio        *float64 `yaml:"pass_ratio"`
		FallbackCredit   *float64 `yaml:"fallback_credit"`
		HintPenalty      *float64 `yaml:"hint_penalty"`
		NumericTolerance *float64 `yaml:"numeric_tolerance"`
		ShortCircuit     *bool    `yaml:"short_circuit"`
		Timeout          string   `yaml:"timeout"`
	} `yaml:"grading"`
	Hints struct {
		LimitPerQuestion int    `yaml:"limit_per_question"`
		Window           string `yaml:"window"`
	} `yaml:"hints"`
	AI struct {
		Provider string `yaml:"provider"`
		OpenAI   struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
		Gemini struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model"`
		} `yaml:"gemini"`
		Anthropic struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model"`
		} `yaml:"anthropic"`
		Retry struct {
			MaxAttempts int    `yaml:"max_attempts"`
			InitialWait string `yaml:"initial_wait"`
			MaxWait     string `yaml:"max_wait"`
		} `yaml:"retry"`
	} `yaml:"ai"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Load reads YAML config from path. APP_ENV overrides the env key.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Env {
	case EnvProduction, EnvDevelopment, EnvTesting:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	if c.Hints.LimitPerQuestion < 0 {
		return fmt.Errorf("hints.limit_per_question must not be negative")
	}
	if r := c.Grading.PassRatio; r != nil && (*r <= 0 || *r > 1) {
		return fmt.Errorf("grading.pass_ratio must be in (0, 1]")
	}
	if r := c.Grading.FallbackCredit; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("grading.fallback_credit must be in [0, 1]")
	}
	return c.LLM().Validate()
}

// GradingPolicy overlays the configured tunables on grading.DefaultPolicy.
func (c Config) GradingPolicy() grading.Policy {
	p := grading.DefaultPolicy()
	g := c.Grading
	if g.PassRatio != nil {
		p.PassRatio = *g.PassRatio
	}
	if g.FallbackCredit != nil {
		p.FallbackCredit = *g.FallbackCredit
	}
	if g.HintPenalty != nil {
		p.HintPenalty = *g.HintPenalty
	}
	if g.NumericTolerance != nil {
		p.NumericTolerance = *g.NumericTolerance
	}
	if g.ShortCircuit != nil {
		p.ShortCircuit = *g.ShortCircuit
	}
	p.Timeout = TTLDuration(g.Timeout, p.Timeout)
	return p
}

// LLM builds the provider configuration, filling missing keys from the environment.
func (c Config) LLM() llm.Config {
	cfg := llm.DefaultConfig()
	if c.AI.Provider != "" {
		cfg.Provider = c.AI.Provider
	}
	cfg.OpenAI.APIKey = c.AI.OpenAI.APIKey
	cfg.OpenAI.BaseURL = c.AI.OpenAI.BaseURL
	if c.AI.OpenAI.Model != "" {
		cfg.OpenAI.Model = c.AI.OpenAI.Model
	}
	cfg.Gemini.APIKey = c.AI.Gemini.APIKey
	if c.AI.Gemini.Model != "" {
		cfg.Gemini.Model = c.AI.Gemini.Model
	}
	cfg.Anthropic.APIKey = c.AI.Anthropic.APIKey
	if c.AI.Anthropic.Model != "" {
		cfg.Anthropic.Model = c.AI.Anthropic.Model
	}
	if c.AI.Retry.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = c.AI.Retry.MaxAttempts
	}
	cfg.Retry.InitialWait = TTLDuration(c.AI.Retry.InitialWait, cfg.Retry.InitialWait)
	cfg.Retry.MaxWait = TTLDuration(c.AI.Retry.MaxWait, cfg.Retry.MaxWait)
	cfg.ApplyEnv()
	return cfg
}

func (c Config) LogOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// HintLimit defaults to 3 hints per user and question.
func (c Config) HintLimit() int {
	if c.Hints.LimitPerQuestion == 0 {
		return 3
	}
	return c.Hints.LimitPerQuestion
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
