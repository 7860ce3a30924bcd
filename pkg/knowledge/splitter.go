package knowledge

import (
	"fmt"
	"strings"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter cuts documents into chunks on line boundaries. A single line longer
// than the chunk size is kept whole.
type Splitter struct {
	splitter textsplitter.TextSplitter
}

// NewSplitter creates a splitter producing chunks of at most size characters
// that overlap by overlap characters.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0,%d), got %d", size, overlap)
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n"}),
		),
	}, nil
}

// Split returns the chunks of doc. Chunk IDs are "<document id>#<n>".
func (s *Splitter) Split(doc domain.Document) ([]domain.Chunk, error) {
	parts, err := s.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", doc.ID, err)
	}
	chunks := make([]domain.Chunk, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         fmt.Sprintf("%s#%d", doc.ID, len(chunks)),
			DocumentID: doc.ID,
			Text:       p,
		})
	}
	return chunks, nil
}
