// Package llm is a thin provider abstraction over the OpenAI, Gemini and
// Anthropic SDKs, sized for the tutor: one system prompt, one user prompt
// and a JSON Schema the reply must satisfy.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a single response for a request.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

type Request struct {
	System      string
	Prompt      string
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Schema is a named JSON Schema the response must satisfy.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	// Content is validated JSON when the request carried a Schema.
	Content json.RawMessage
	Model   string
	Usage   Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Decode unmarshals the response into out.
func Decode(resp *Response, out any) error {
	if err := json.Unmarshal(resp.Content, out); err != nil {
		return invalid(resp.Content, err)
	}
	return nil
}

// Purpose labels a call for logs and metrics.
type Purpose string

type purposeKey struct{}

func WithPurpose(ctx context.Context, p Purpose) context.Context {
	return context.WithValue(ctx, purposeKey{}, p)
}

func PurposeFrom(ctx context.Context) Purpose {
	if p, ok := ctx.Value(purposeKey{}).(Purpose); ok {
		return p
	}
	return "unknown"
}
