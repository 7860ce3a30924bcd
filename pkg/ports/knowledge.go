package ports

import (
	"context"

	"github.com/aretw0/railyard/pkg/domain"
)

// VectorIndex stores embedded knowledge chunks and answers nearest-neighbour queries.
type VectorIndex interface {
	// Upsert stores chunks; their Vector field must be set.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Search returns up to k chunks ordered by decreasing similarity, with Score set.
	Search(ctx context.Context, vector []float32, k int) ([]domain.Chunk, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Delete removes every chunk of the given documents. Unknown IDs are ignored.
	Delete(ctx context.Context, documentIDs ...string) error
}

// Retriever returns the knowledge chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.Chunk, error)
}

// DocumentLoader reads source documents for the knowledge base.
type DocumentLoader interface {
	LoadDocuments(ctx context.Context) ([]domain.Document, error)
}
