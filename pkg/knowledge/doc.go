// Package knowledge builds the retrieval side of generated answers: documents
// are split into overlapping chunks, embedded and stored in a vector index,
// and queries return the closest chunks.
package knowledge
