package domain

// Document is a source text loaded into the knowledge base.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a retrievable slice of a Document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Score      float64   `json:"score,omitempty"`
	Vector     []float32 `json:"-"`
}
