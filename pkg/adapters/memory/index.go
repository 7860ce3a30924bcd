package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/railyard/internal/vector"
	"github.com/aretw0/railyard/pkg/domain"
)

// Index implements ports.VectorIndex with a linear cosine scan.
// Safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	order  []string
	chunks map[string]domain.Chunk
}

// NewIndex creates an empty in-memory vector index.
func NewIndex() *Index {
	return &Index{chunks: make(map[string]domain.Chunk)}
}

// Upsert stores chunks, replacing those with the same ID.
func (x *Index) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		if _, exists := x.chunks[c.ID]; !exists {
			x.order = append(x.order, c.ID)
		}
		x.chunks[c.ID] = c
	}
	return nil
}

// Search returns up to k chunks by decreasing cosine similarity. Ties keep insertion order.
func (x *Index) Search(ctx context.Context, v []float32, k int) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	results := make([]domain.Chunk, 0, len(x.order))
	for _, id := range x.order {
		c := x.chunks[id]
		c.Score = vector.Cosine(v, c.Vector)
		results = append(results, c)
	}
	x.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete drops the chunks of the given documents.
func (x *Index) Delete(ctx context.Context, documentIDs ...string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		drop[id] = struct{}{}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	kept := x.order[:0]
	for _, id := range x.order {
		if _, ok := drop[x.chunks[id].DocumentID]; ok {
			delete(x.chunks, id)
			continue
		}
		kept = append(kept, id)
	}
	x.order = kept
	return nil
}

// Count returns the number of stored chunks.
func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks), nil
}
