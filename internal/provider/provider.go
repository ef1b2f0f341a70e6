package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a model replies without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents the output from the model.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Options are the per-request sampling parameters. Zero values leave the
// provider default in place.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Chat sends a list of messages to the model and returns a response.
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Generator adapts a Provider to single-prompt text generation.
type Generator struct {
	Provider Provider
}

// Generate sends prompt as one user message and returns the reply text.
func (g Generator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := g.Provider.Chat(ctx, []Message{{Role: "user", Content: prompt}}, opts)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%s: %w", g.Provider.Name(), ErrEmptyResponse)
	}
	return resp.Content, nil
}
