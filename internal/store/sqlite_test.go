package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestKB(t *testing.T, s *SQLiteStore, dimension int) *domain.KnowledgeBase {
	t.Helper()
	kb := domain.NewKnowledgeBase(
		uuid.NewString(), "user-1", "Backend Prep",
		domain.KnowledgeDomainIT, "backend", dimension, time.Now().UTC(),
	)
	require.NoError(t, s.CreateKnowledgeBase(context.Background(), kb))
	return kb
}

func newTestDocument(t *testing.T, s *SQLiteStore, kbID string) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(
		uuid.NewString(), kbID, "uploads/notes.txt", "txt",
		"extracted text", time.Now().UTC(),
	)
	require.NoError(t, s.AddDocument(context.Background(), doc))
	return doc
}

func makeChunks(kbID, documentID string, vectors ...[]float32) []*domain.Chunk {
	chunks := make([]*domain.Chunk, len(vectors))
	createdAt := time.Now().UTC()
	for i, v := range vectors {
		chunks[i] = &domain.Chunk{
			ID:         uuid.NewString(),
			KBID:       kbID,
			DocumentID: documentID,
			Index:      i,
			Content:    fmt.Sprintf("chunk %d", i),
			Metadata:   map[string]string{"chunk_index": fmt.Sprintf("%d", i)},
			Embedding:  v,
			CreatedAt:  createdAt,
		}
	}
	return chunks
}

func TestKnowledgeBaseRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb := newTestKB(t, s, 3)

	got, err := s.GetKnowledgeBase(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, kb.ID, got.ID)
	assert.Equal(t, kb.OwnerID, got.OwnerID)
	assert.Equal(t, kb.Name, got.Name)
	assert.Equal(t, domain.KnowledgeDomainIT, got.Domain)
	assert.Equal(t, "backend", got.SubDomain)
	assert.Equal(t, 3, got.Dimension)
}

func TestGetKnowledgeBaseNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetKnowledgeBase(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseNotFound)
	assert.True(t, domain.IsNotFound(err))
}

func TestAddDocumentUnknownKB(t *testing.T) {
	s := newTestStore(t)

	doc := domain.NewDocument(uuid.NewString(), uuid.NewString(), "x.txt", "txt", "text", time.Now().UTC())
	err := s.AddDocument(context.Background(), doc)
	assert.True(t, domain.IsNotFound(err))
}

func TestAddChunksAndRetrieveInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb := newTestKB(t, s, 2)
	doc := newTestDocument(t, s, kb.ID)

	chunks := makeChunks(kb.ID, doc.ID, []float32{1, 0}, []float32{0, 1}, []float32{0.5, 0.5})
	require.NoError(t, s.AddChunks(ctx, kb.ID, doc.ID, chunks))

	got, err := s.ChunksByKnowledgeBase(ctx, kb.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, c := range got {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, fmt.Sprintf("chunk %d", i), c.Content)
		assert.Equal(t, chunks[i].Embedding, c.Embedding)
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.Equal(t, fmt.Sprintf("%d", i), c.Metadata["chunk_index"])
	}
}

func TestAddChunksDimensionMismatchRejectsWholeBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb := newTestKB(t, s, 2)
	doc := newTestDocument(t, s, kb.ID)

	chunks := makeChunks(kb.ID, doc.ID, []float32{1, 0}, []float32{1, 2, 3})
	err := s.AddChunks(ctx, kb.ID, doc.ID, chunks)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.True(t, domain.IsValidation(err))

	// No partial write
	got, err := s.ChunksByKnowledgeBase(ctx, kb.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddChunksUnknownKB(t *testing.T) {
	s := newTestStore(t)

	chunks := makeChunks(uuid.NewString(), "", []float32{1})
	err := s.AddChunks(context.Background(), chunks[0].KBID, "", chunks)
	assert.True(t, domain.IsNotFound(err))
}

func TestChunksByKnowledgeBaseUnknownKBIsEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ChunksByKnowledgeBase(context.Background(), uuid.NewString(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChunksByKnowledgeBaseLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb := newTestKB(t, s, 1)
	doc := newTestDocument(t, s, kb.ID)
	chunks := makeChunks(kb.ID, doc.ID, []float32{1}, []float32{2}, []float32{3})
	require.NoError(t, s.AddChunks(ctx, kb.ID, doc.ID, chunks))

	got, err := s.ChunksByKnowledgeBase(ctx, kb.ID, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDeleteDocumentChunksTombstones(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb := newTestKB(t, s, 1)
	docA := newTestDocument(t, s, kb.ID)
	docB := newTestDocument(t, s, kb.ID)

	require.NoError(t, s.AddChunks(ctx, kb.ID, docA.ID, makeChunks(kb.ID, docA.ID, []float32{1})))
	require.NoError(t, s.AddChunks(ctx, kb.ID, docB.ID, makeChunks(kb.ID, docB.ID, []float32{2})))

	require.NoError(t, s.DeleteDocumentChunks(ctx, docA.ID))

	got, err := s.ChunksByKnowledgeBase(ctx, kb.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, docB.ID, got[0].DocumentID)
}

func TestIngestJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb := newTestKB(t, s, 1)
	doc := newTestDocument(t, s, kb.ID)

	job := domain.NewIngestJob(uuid.NewString(), kb.ID, doc.ID, 1000, 200, time.Now().UTC())
	require.NoError(t, s.EnqueueIngestJob(ctx, job))

	pending, err := s.PendingIngestJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0].ID)
	assert.Equal(t, 1000, pending[0].ChunkSize)
	assert.Equal(t, 200, pending[0].Overlap)

	require.NoError(t, s.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusProcessing, ""))
	pending, err = s.PendingIngestJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.IncrementIngestJobRetries(ctx, job.ID))
	require.NoError(t, s.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""))
}

func TestUpdateIngestJobStatusNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateIngestJobStatus(context.Background(), uuid.NewString(), domain.IngestJobStatusFailed, "boom")
	assert.ErrorIs(t, err, domain.ErrIngestJobNotFound)
}
