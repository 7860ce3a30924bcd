// Package qdrant implements ports.VectorIndex on a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys stored with every point.
const (
	PayloadChunkID    = "chunk_id"
	PayloadDocumentID = "document_id"
	PayloadText       = "text"
)

// namespace derives stable point IDs from chunk IDs.
var namespace = uuid.MustParse("6f1c2b9e-4a55-4f8e-9d7e-1f3a6b2c8d40")

// Config points at a Qdrant instance.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Index stores chunks as points of one collection, created on first upsert
// with the dimension of the first vector and cosine distance.
type Index struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	mu    sync.Mutex
	ready bool
}

// New connects to Qdrant over gRPC.
func New(cfg Config, logger *slog.Logger) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Index{
		client:     client,
		collection: cfg.Collection,
		logger:     logger.With("component", "qdrant", "collection", cfg.Collection),
	}, nil
}

// Close releases the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

func (x *Index) ensureCollection(ctx context.Context, size int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready {
		return nil
	}
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		x.logger.Info("creating collection", "size", size)
		err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(size),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %q: %w", x.collection, err)
		}
	}
	x.ready = true
	return nil
}

// Upsert implements ports.VectorIndex.
func (x *Index) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := x.ensureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = toPoint(c)
	}
	wait := true
	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Search implements ports.VectorIndex.
func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	limit := uint64(k)
	hits, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}
	out := make([]domain.Chunk, len(hits))
	for i, h := range hits {
		out[i] = fromPayload(h.GetPayload(), h.GetScore())
	}
	return out, nil
}

// Count implements ports.VectorIndex. A missing collection counts as empty.
func (x *Index) Count(ctx context.Context) (int, error) {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return 0, nil
	}
	exact := true
	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

// Delete implements ports.VectorIndex by filtering on the document payload.
// A missing collection has nothing to delete.
func (x *Index) Delete(ctx context.Context, documentIDs ...string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil
	}
	wait := true
	_, err = x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatchKeywords(PayloadDocumentID, documentIDs...)},
				},
			},
		},
		Wait: &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// PointID maps a chunk ID to the UUID used as its point ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(namespace, []byte(chunkID)).String()
}

func toPoint(c domain.Chunk) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(c.ID)),
		Vectors: qdrant.NewVectors(c.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			PayloadChunkID:    c.ID,
			PayloadDocumentID: c.DocumentID,
			PayloadText:       c.Text,
		}),
	}
}

func fromPayload(p map[string]*qdrant.Value, score float32) domain.Chunk {
	return domain.Chunk{
		ID:         p[PayloadChunkID].GetStringValue(),
		DocumentID: p[PayloadDocumentID].GetStringValue(),
		Text:       p[PayloadText].GetStringValue(),
		Score:      float64(score),
	}
}
