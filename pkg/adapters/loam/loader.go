// Package loam reads knowledge notes from a Loam document repository.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/railyard/pkg/domain"
)

// Loader adapts a Loam repository to ports.DocumentLoader and ports.Watchable.
type Loader struct {
	Repo *loam.TypedRepository[NoteMetadata]
}

// New creates a loader over an existing typed repository.
func New(repo *loam.TypedRepository[NoteMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only, strict Loam repository at path.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[NoteMetadata](repo)), nil
}

// LoadDocuments implements ports.DocumentLoader. Drafts and notes without a body
// are skipped. Documents are ordered by ID.
func (l *Loader) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	notes, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	docs := make([]domain.Document, 0, len(notes))
	for _, note := range notes {
		if note.Data.Draft || strings.TrimSpace(note.Content) == "" {
			continue
		}
		rawID := note.Data.ID
		if rawID == "" {
			rawID = note.ID
		}
		id := trimExtension(rawID)
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate note ID %q (found in %q and %q)", id, prev, note.ID)
		}
		seen[id] = note.ID

		meta := map[string]any{"source": note.ID}
		if note.Data.Title != "" {
			meta["title"] = note.Data.Title
		}
		if len(note.Data.Tags) > 0 {
			meta["tags"] = note.Data.Tags
		}
		content := note.Content
		if note.Data.Title != "" {
			content = note.Data.Title + "\n\n" + content
		}
		docs = append(docs, domain.Document{ID: id, Content: content, Metadata: meta})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable. Loam debounces the underlying file events.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}
