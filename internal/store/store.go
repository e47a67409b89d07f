// Package store persists knowledge bases, documents, chunks, and vectors.
// Two interchangeable backends implement the same interface: Postgres with a
// native pgvector column, and SQLite with vectors serialized as JSON float
// arrays. The backend is selected once at configuration time; nothing above
// this package branches on the representation.
package store

import (
	"context"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

// Store is the persistence backend for the retrieval engine.
//
// AddChunks validates every chunk's embedding against the knowledge base's
// configured dimension and writes the batch inside a single transaction: a
// mismatch rejects the entire batch and nothing is persisted for that call.
// Chunks are append-only; DeleteDocumentChunks tombstones rather than
// removes.
type Store interface {
	CreateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error)

	AddDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	AddChunks(ctx context.Context, kbID, documentID string, chunks []*domain.Chunk) error

	// ChunksByKnowledgeBase returns live chunks in stable retrieval order
	// (created_at, chunk index, id ascending). An unknown knowledge base
	// yields an empty slice, not an error. A limit <= 0 means no limit.
	ChunksByKnowledgeBase(ctx context.Context, kbID string, limit int) ([]*domain.Chunk, error)

	// DeleteDocumentChunks tombstones every chunk of a document so it stops
	// appearing in search results. The rows are retained.
	DeleteDocumentChunks(ctx context.Context, documentID string) error

	EnqueueIngestJob(ctx context.Context, job *domain.IngestJob) error
	PendingIngestJobs(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	UpdateIngestJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error
	IncrementIngestJobRetries(ctx context.Context, jobID string) error

	Close()
}

// validateBatch checks every chunk against the knowledge base dimension
// before any row is written.
func validateBatch(kb *domain.KnowledgeBase, chunks []*domain.Chunk) error {
	for _, chunk := range chunks {
		if err := domain.ValidateChunk(chunk, kb.Dimension); err != nil {
			return err
		}
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
