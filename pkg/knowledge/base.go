package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 2

// Base is a knowledge base over a vector index. It implements ports.Retriever.
type Base struct {
	embedder    ports.Embedder
	index       ports.VectorIndex
	splitter    *Splitter
	topK        int
	batchSize   int
	concurrency int
	logger      *slog.Logger

	mu   sync.Mutex
	docs map[string]struct{}
}

// Option configures a Base.
type Option func(*Base)

// WithTopK sets the number of chunks returned by Retrieve.
func WithTopK(k int) Option {
	return func(b *Base) {
		if k > 0 {
			b.topK = k
		}
	}
}

// WithSplitter replaces the default 1000/200 splitter.
func WithSplitter(s *Splitter) Option {
	return func(b *Base) { b.splitter = s }
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(b *Base) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithLogger sets the logger used while ingesting.
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) { b.logger = l }
}

// New creates a knowledge base that embeds with embedder and stores into index.
func New(embedder ports.Embedder, index ports.VectorIndex, opts ...Option) (*Base, error) {
	b := &Base{
		embedder:    embedder,
		index:       index,
		topK:        DefaultTopK,
		batchSize:   32,
		concurrency: 4,
		logger:      slog.New(slog.DiscardHandler),
		docs:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.splitter == nil {
		s, err := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
		if err != nil {
			return nil, err
		}
		b.splitter = s
	}
	b.logger = b.logger.With("component", "knowledge")
	return b, nil
}

// Load reads documents from every loader and ingests them.
func (b *Base) Load(ctx context.Context, loaders ...ports.DocumentLoader) (int, error) {
	docs, err := loadAll(ctx, loaders)
	if err != nil {
		return 0, err
	}
	return b.Ingest(ctx, docs)
}

// Sync re-reads every loader and makes the index mirror the result: documents
// are re-ingested and those no loader returns any more are deleted.
func (b *Base) Sync(ctx context.Context, loaders ...ports.DocumentLoader) (int, error) {
	docs, err := loadAll(ctx, loaders)
	if err != nil {
		return 0, err
	}
	n, err := b.Ingest(ctx, docs)
	if err != nil {
		return 0, err
	}

	current := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		current[d.ID] = struct{}{}
	}
	b.mu.Lock()
	var gone []string
	for id := range b.docs {
		if _, ok := current[id]; !ok {
			gone = append(gone, id)
		}
	}
	b.mu.Unlock()
	if len(gone) == 0 {
		return n, nil
	}

	sort.Strings(gone)
	if err := b.index.Delete(ctx, gone...); err != nil {
		return 0, fmt.Errorf("deleting removed documents: %w", err)
	}
	b.mu.Lock()
	for _, id := range gone {
		delete(b.docs, id)
	}
	b.mu.Unlock()
	b.logger.Info("knowledge documents removed", "documents", gone)
	return n, nil
}

func loadAll(ctx context.Context, loaders []ports.DocumentLoader) ([]domain.Document, error) {
	var docs []domain.Document
	for _, l := range loaders {
		d, err := l.LoadDocuments(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d...)
	}
	return docs, nil
}

// Ingest splits, embeds and indexes docs, replacing any chunks previously
// indexed for the same document IDs. It returns the number of chunks stored.
func (b *Base) Ingest(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	var chunks []domain.Chunk
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		c, err := b.splitter.Split(d)
		if err != nil {
			return 0, err
		}
		chunks = append(chunks, c...)
		ids = append(ids, d.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for start := 0; start < len(chunks); start += b.batchSize {
		batch := chunks[start:min(start+b.batchSize, len(chunks))]
		g.Go(func() error {
			return b.embed(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := b.index.Delete(ctx, ids...); err != nil {
		return 0, fmt.Errorf("clearing stale chunks: %w", err)
	}
	if len(chunks) > 0 {
		if err := b.index.Upsert(ctx, chunks); err != nil {
			return 0, fmt.Errorf("indexing chunks: %w", err)
		}
	}

	b.mu.Lock()
	for _, id := range ids {
		b.docs[id] = struct{}{}
	}
	b.mu.Unlock()
	b.logger.Info("knowledge indexed", "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}

// embed fills the Vector of every chunk in batch.
func (b *Base) embed(ctx context.Context, batch []domain.Chunk) error {
	if be, ok := b.embedder.(ports.BatchEmbedder); ok {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: embedding chunks: %w", domain.ErrServiceUnavailable, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d chunks", domain.ErrServiceUnavailable, len(vecs), len(batch))
		}
		for i := range batch {
			batch[i].Vector = vecs[i]
		}
		return nil
	}
	for i := range batch {
		v, err := b.embedder.Embed(ctx, batch[i].Text)
		if err != nil {
			return fmt.Errorf("%w: embedding chunk %s: %w", domain.ErrServiceUnavailable, batch[i].ID, err)
		}
		batch[i].Vector = v
	}
	return nil
}

// Retrieve returns the min(top_k, total) chunks closest to query.
// It returns domain.ErrNoKnowledge when nothing has been indexed.
func (b *Base) Retrieve(ctx context.Context, query string) ([]domain.Chunk, error) {
	total, err := b.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: counting chunks: %w", domain.ErrServiceUnavailable, err)
	}
	if total == 0 {
		return nil, domain.ErrNoKnowledge
	}
	v, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", domain.ErrServiceUnavailable, err)
	}
	chunks, err := b.index.Search(ctx, v, min(b.topK, total))
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %w", domain.ErrServiceUnavailable, err)
	}
	return chunks, nil
}

// Count returns the number of indexed chunks.
func (b *Base) Count(ctx context.Context) (int, error) {
	return b.index.Count(ctx)
}
