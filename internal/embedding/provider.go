// Package embedding defines the embedding capability consumed by ingestion
// and search, plus the content-addressed cache layered over it.
package embedding

import "context"

// Provider is the external embedding capability. Implementations are assumed
// deterministic for a fixed model version; vectors are not guaranteed
// normalized.
type Provider interface {
	// EmbedQuery generates an embedding for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for a list of texts. The result
	// has the same length and order as the input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the embedding model; it is part of every cache key.
	Model() string

	// Dimension is the fixed length of vectors this provider produces.
	Dimension() int
}
