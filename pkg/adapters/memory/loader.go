package memory

import (
	"context"
	"sort"

	"github.com/aretw0/railyard/pkg/domain"
)

// Loader implements ports.DocumentLoader using an in-memory map of ID to content.
type Loader struct {
	docs map[string]string
}

// NewLoader creates a Loader serving the given documents.
func NewLoader(docs map[string]string) *Loader {
	return &Loader{docs: docs}
}

// LoadDocuments returns the documents ordered by ID.
func (l *Loader) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	ids := make([]string, 0, len(l.docs))
	for id := range l.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Document{ID: id, Content: l.docs[id]})
	}
	return out, nil
}
