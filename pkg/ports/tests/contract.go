package tests

import (
	"context"
	"testing"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
)

// VectorIndexContractTest is a reusable test suite that verifies if an adapter complies with ports.VectorIndex.
// The index must be empty when passed in.
func VectorIndexContractTest(t *testing.T, index ports.VectorIndex) {
	t.Helper()
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		n, err := index.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error counting: %v", err)
		}
		if n != 0 {
			t.Errorf("expected empty index, got %d chunks", n)
		}
	})

	chunks := []domain.Chunk{
		{ID: "6a2f41a3-c54c-5fcd-9f3a-7c1c3c1b4a01", DocumentID: "doc", Text: "north", Vector: []float32{1, 0, 0}},
		{ID: "6a2f41a3-c54c-5fcd-9f3a-7c1c3c1b4a02", DocumentID: "doc", Text: "east", Vector: []float32{0, 1, 0}},
		{ID: "6a2f41a3-c54c-5fcd-9f3a-7c1c3c1b4a03", DocumentID: "doc", Text: "north-east", Vector: []float32{0.7, 0.7, 0}},
	}

	t.Run("Upsert", func(t *testing.T) {
		if err := index.Upsert(ctx, chunks); err != nil {
			t.Fatalf("unexpected error upserting: %v", err)
		}
		// Upserting the same IDs again must not duplicate them.
		if err := index.Upsert(ctx, chunks[:1]); err != nil {
			t.Fatalf("unexpected error re-upserting: %v", err)
		}
		n, err := index.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error counting: %v", err)
		}
		if n != len(chunks) {
			t.Errorf("expected %d chunks, got %d", len(chunks), n)
		}
	})

	t.Run("Search", func(t *testing.T) {
		got, err := index.Search(ctx, []float32{1, 0.1, 0}, 2)
		if err != nil {
			t.Fatalf("unexpected error searching: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 results, got %d", len(got))
		}
		if got[0].Text != "north" || got[1].Text != "north-east" {
			t.Errorf("unexpected order: %q, %q", got[0].Text, got[1].Text)
		}
		if got[0].Score < got[1].Score {
			t.Errorf("scores not descending: %f < %f", got[0].Score, got[1].Score)
		}
	})

	t.Run("Search Larger K", func(t *testing.T) {
		got, err := index.Search(ctx, []float32{0, 1, 0}, 10)
		if err != nil {
			t.Fatalf("unexpected error searching: %v", err)
		}
		if len(got) != len(chunks) {
			t.Errorf("expected %d results, got %d", len(chunks), len(got))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		other := domain.Chunk{ID: "6a2f41a3-c54c-5fcd-9f3a-7c1c3c1b4a04", DocumentID: "other", Text: "up", Vector: []float32{0, 0, 1}}
		if err := index.Upsert(ctx, []domain.Chunk{other}); err != nil {
			t.Fatalf("unexpected error upserting: %v", err)
		}
		if err := index.Delete(ctx, "doc", "missing"); err != nil {
			t.Fatalf("unexpected error deleting: %v", err)
		}
		n, err := index.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error counting: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 chunk after delete, got %d", n)
		}
		got, err := index.Search(ctx, []float32{1, 0, 0}, 10)
		if err != nil {
			t.Fatalf("unexpected error searching: %v", err)
		}
		if len(got) != 1 || got[0].Text != "up" {
			t.Errorf("expected only the other document to remain, got %v", got)
		}
	})
}
