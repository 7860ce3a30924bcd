// Package langchain implements ports.Provider on top of langchaingo models and embedders.
package langchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider adapts a langchaingo chat model and embedder.
type Provider struct {
	llm      llms.Model
	embedder embeddings.Embedder
}

// New wraps an existing model and embedder.
func New(llm llms.Model, embedder embeddings.Embedder) *Provider {
	return &Provider{llm: llm, embedder: embedder}
}

// Config selects the OpenAI-compatible endpoint used by NewOpenAI.
type Config struct {
	CompletionModel string
	EmbeddingModel  string
	APIKey          string
	BaseURL         string
}

// NewOpenAI builds a provider backed by langchaingo's OpenAI client.
func NewOpenAI(cfg Config) (*Provider, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.CompletionModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain embedder: %w", err)
	}
	return New(llm, embedder), nil
}

// Embed implements ports.Embedder.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.embedder.EmbedQuery(ctx, text)
}

// EmbedBatch implements ports.BatchEmbedder.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedder.EmbedDocuments(ctx, texts)
}

// Complete implements ports.Completer.
func (p *Provider) Complete(ctx context.Context, prompt domain.Prompt, params domain.CompletionParams) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, Messages(prompt), CallOptions(params)...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Messages converts a prompt into langchaingo chat messages.
func Messages(prompt domain.Prompt) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(prompt.Turns)+1)
	if prompt.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, prompt.System))
	}
	for _, u := range prompt.Turns {
		role := llms.ChatMessageTypeHuman
		switch u.Role {
		case domain.RoleBot:
			role = llms.ChatMessageTypeAI
		case domain.RoleSystem:
			role = llms.ChatMessageTypeSystem
		}
		msgs = append(msgs, llms.TextParts(role, u.Text))
	}
	return msgs
}

// CallOptions converts completion parameters. Zero values keep the model defaults,
// except temperature which is always sent.
func CallOptions(params domain.CompletionParams) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(params.Temperature)}
	if params.Model != "" {
		opts = append(opts, llms.WithModel(params.Model))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	return opts
}
