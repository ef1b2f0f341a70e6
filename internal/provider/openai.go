package provider

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel = "llama3-70b-8192"
)

type OpenAIProvider struct {
	client     *openai.Client
	name       string
	model      string
	embedModel openai.EmbeddingModel
}

func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	client := openai.NewClientWithConfig(config)
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIProvider{
		client:     client,
		name:       "openai",
		model:      model,
		embedModel: openai.SmallEmbedding3,
	}, nil
}

// NewGroqProvider talks to Groq through its OpenAI-compatible API.
func NewGroqProvider(apiKey, model string) (*OpenAIProvider, error) {
	if model == "" {
		model = DefaultGroqModel
	}
	p, err := NewOpenAIProvider(apiKey, GroqBaseURL, model)
	if err != nil {
		return nil, err
	}
	p.name = "groq"
	return p, nil
}

// SetEmbeddingModel overrides the model used by Embed.
func (p *OpenAIProvider) SetEmbeddingModel(model string) {
	if model != "" {
		p.embedModel = openai.EmbeddingModel(model)
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	reqMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		reqMsgs[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    reqMsgs,
			Temperature: float32(opts.Temperature),
			MaxTokens:   opts.MaxTokens,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s completion returned no choices", p.name)
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(
		ctx,
		openai.EmbeddingRequest{
			Input: []string{text},
			Model: p.embedModel,
		},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}
