package ports

import (
	"context"

	"github.com/aretw0/railyard/pkg/domain"
)

// Embedder maps text into a vector space shared by utterances, intent examples and knowledge chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed several texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates a bot answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt domain.Prompt, params domain.CompletionParams) (string, error)
}

// Provider bundles the embedding and completion services used by the engine.
type Provider interface {
	Embedder
	Completer
}
