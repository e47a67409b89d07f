package domain

import "time"

// Chunk represents a bounded-length fragment of a document's text, the atomic
// unit of embedding and retrieval. Chunks are append-only: once written their
// content and embedding never change. Retraction is a tombstone, not a
// physical delete.
type Chunk struct {
	ID         string
	KBID       string
	DocumentID string // empty when the chunk has no backing document
	Index      int    // ordinal within its ingestion batch
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	CreatedAt  time.Time
}

// ValidateChunk validates a Chunk instance against the knowledge base's
// configured vector dimension.
func ValidateChunk(c *Chunk, dimension int) error {
	if c == nil {
		return NewDomainError(ErrCodeValidation, "chunk cannot be nil")
	}

	if c.KBID == "" {
		return NewDomainError(ErrCodeValidation, "chunk KBID is required")
	}

	if c.Content == "" {
		return NewDomainError(ErrCodeValidation, "chunk Content is required")
	}

	if len(c.Embedding) != dimension {
		return ErrDimensionMismatch
	}

	return nil
}
