// Package service implements the knowledge-base registry and the
// ingestion path that turns raw document text into searchable chunks.
package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veldtlabs/mentorkb/internal/chunker"
	"github.com/veldtlabs/mentorkb/internal/domain"
	"github.com/veldtlabs/mentorkb/internal/embedding"
	"github.com/veldtlabs/mentorkb/internal/store"
	"github.com/veldtlabs/mentorkb/internal/telemetry"
)

// ArchiveInterface stores raw document bodies in object storage. Archival
// is supplementary to the relational copy and failures are non-fatal.
type ArchiveInterface interface {
	Store(ctx context.Context, key string, body []byte) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService handles knowledge-base registry operations and document
// ingestion (chunk, embed, persist).
type KnowledgeService struct {
	store    store.Store
	provider embedding.Provider
	archive  ArchiveInterface
	uuidGen  UUIDGenerator
	now      func() time.Time
}

// NewKnowledgeService creates a new KnowledgeService. archive may be nil,
// in which case raw documents are kept only in the store.
func NewKnowledgeService(st store.Store, provider embedding.Provider, archive ArchiveInterface) *KnowledgeService {
	return &KnowledgeService{
		store:    st,
		provider: provider,
		archive:  archive,
		uuidGen:  &DefaultUUIDGenerator{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewKnowledgeServiceWithClock creates a KnowledgeService with custom UUID
// generation and clock (for testing).
func NewKnowledgeServiceWithClock(st store.Store, provider embedding.Provider, archive ArchiveInterface, uuidGen UUIDGenerator, now func() time.Time) *KnowledgeService {
	return &KnowledgeService{
		store:    st,
		provider: provider,
		archive:  archive,
		uuidGen:  uuidGen,
		now:      now,
	}
}

// CreateKnowledgeBase registers a new knowledge base. The vector dimension
// is fixed at creation from the configured embedding provider and every
// later chunk write is validated against it.
func (s *KnowledgeService) CreateKnowledgeBase(ctx context.Context, ownerID, name string, kd domain.KnowledgeDomain, subDomain string) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.CreateKnowledgeBase", telemetry.SpanAttributes{
		Operation: "create_knowledge_base",
	})
	defer span.End()

	kb := domain.NewKnowledgeBase(s.uuidGen.NewString(), ownerID, name, kd, subDomain, s.provider.Dimension(), s.now())
	if err := s.store.CreateKnowledgeBase(ctx, kb); err != nil {
		span.SetError(err)
		return nil, err
	}
	return kb, nil
}

// GetKnowledgeBase looks up a knowledge base by id.
func (s *KnowledgeService) GetKnowledgeBase(ctx context.Context, kbID string) (*domain.KnowledgeBase, error) {
	return s.store.GetKnowledgeBase(ctx, kbID)
}

// AddDocument persists an extracted document under a knowledge base and
// archives the raw body when an archive is configured.
func (s *KnowledgeService) AddDocument(ctx context.Context, kbID, sourceLocation, fileType, content string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.AddDocument", telemetry.SpanAttributes{
		KnowledgeBaseID: kbID,
		Operation:       "add_document",
	})
	defer span.End()

	doc := domain.NewDocument(s.uuidGen.NewString(), kbID, sourceLocation, fileType, content, s.now())
	if err := s.store.AddDocument(ctx, doc); err != nil {
		span.SetError(err)
		return nil, err
	}

	if s.archive != nil {
		key := archiveKey(doc)
		if err := s.archive.Store(ctx, key, []byte(content)); err != nil {
			// The store already holds the canonical copy.
			log.Printf("archive: store %s failed: %v", key, err)
			telemetry.CaptureError(ctx, err)
		}
	}
	return doc, nil
}

// GetDocument looks up a document by id.
func (s *KnowledgeService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.store.GetDocument(ctx, documentID)
}

// IngestChunks splits rawText, embeds every chunk and persists the batch
// atomically. It returns the number of chunks written. Blank input writes
// nothing and returns 0.
func (s *KnowledgeService) IngestChunks(ctx context.Context, kbID, documentID, rawText string, chunkSize, overlap int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.IngestChunks", telemetry.SpanAttributes{
		KnowledgeBaseID: kbID,
		DocumentID:      documentID,
		Operation:       "ingest_chunks",
	})
	defer span.End()

	texts := chunker.New(chunkSize, overlap).Split(rawText)
	if len(texts) == 0 {
		return 0, nil
	}

	// Resolve the knowledge base before spending on embeddings: an unknown
	// id or a provider/KB dimension mismatch would only fail in AddChunks
	// after the whole batch was embedded.
	kb, err := s.store.GetKnowledgeBase(ctx, kbID)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	if s.provider.Dimension() != kb.Dimension {
		err := domain.ErrDimensionMismatch
		span.SetError(err)
		return 0, err
	}

	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	createdAt := s.now()
	chunks := make([]*domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &domain.Chunk{
			ID:         s.uuidGen.NewString(),
			KBID:       kbID,
			DocumentID: documentID,
			Index:      i,
			Content:    text,
			Metadata:   map[string]string{"chunk_index": strconv.Itoa(i)},
			Embedding:  vectors[i],
			CreatedAt:  createdAt,
		}
	}

	if err := s.store.AddChunks(ctx, kbID, documentID, chunks); err != nil {
		span.SetError(err)
		return 0, err
	}
	return len(chunks), nil
}

// IngestDocument persists the document and enqueues a background ingestion
// job instead of chunking inline.
func (s *KnowledgeService) IngestDocument(ctx context.Context, kbID, sourceLocation, fileType, content string, chunkSize, overlap int) (*domain.Document, *domain.IngestJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.IngestDocument", telemetry.SpanAttributes{
		KnowledgeBaseID: kbID,
		Operation:       "ingest_document",
	})
	defer span.End()

	doc, err := s.AddDocument(ctx, kbID, sourceLocation, fileType, content)
	if err != nil {
		span.SetError(err)
		return nil, nil, err
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), kbID, doc.ID, chunkSize, overlap, s.now())
	if err := s.store.EnqueueIngestJob(ctx, job); err != nil {
		span.SetError(err)
		return nil, nil, err
	}
	return doc, job, nil
}

// DeleteDocumentChunks tombstones all live chunks of a document, removing
// them from search without touching the rows.
func (s *KnowledgeService) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	return s.store.DeleteDocumentChunks(ctx, documentID)
}

func archiveKey(doc *domain.Document) string {
	return fmt.Sprintf("kb/%s/documents/%s.%s", doc.KBID, doc.ID, doc.FileType)
}
