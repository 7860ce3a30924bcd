// Package openai implements ports.Provider with the go-openai client.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/railyard/pkg/domain"
	goopenai "github.com/sashabaranov/go-openai"
)

// Config selects the endpoint and models.
type Config struct {
	APIKey          string
	BaseURL         string
	CompletionModel string
	EmbeddingModel  string
}

// Provider talks to an OpenAI-compatible API.
type Provider struct {
	client *goopenai.Client
	cfg    Config
}

// New creates a provider. BaseURL may point at any OpenAI-compatible server.
func New(cfg Config) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{client: goopenai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Embed implements ports.Embedder.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements ports.BatchEmbedder.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(p.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Complete implements ports.Completer.
func (p *Provider) Complete(ctx context.Context, prompt domain.Prompt, params domain.CompletionParams) (string, error) {
	model := params.Model
	if model == "" {
		model = p.cfg.CompletionModel
	}
	// The client drops a zero temperature; the smallest float keeps it deterministic.
	temp := float32(params.Temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages(prompt),
		Temperature: temp,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func messages(prompt domain.Prompt) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(prompt.Turns)+1)
	if prompt.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: prompt.System})
	}
	for _, u := range prompt.Turns {
		role := goopenai.ChatMessageRoleUser
		switch u.Role {
		case domain.RoleBot:
			role = goopenai.ChatMessageRoleAssistant
		case domain.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: u.Text})
	}
	return msgs
}
