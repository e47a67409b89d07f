//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/mentorkb/internal/domain"
	"github.com/veldtlabs/mentorkb/internal/testutil"
)

func setupPostgresStore(ctx context.Context, t *testing.T) *PostgresStore {
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc)
	t.Cleanup(pool.Close)

	return NewPostgresStore(pool)
}

func TestPostgresStoreIntegration_KnowledgeBaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupPostgresStore(ctx, t)

	kb := domain.NewKnowledgeBase(uuid.NewString(), "user-1", "Backend Prep",
		domain.KnowledgeDomainIT, "backend", 3, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.CreateKnowledgeBase(ctx, kb))

	got, err := s.GetKnowledgeBase(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, kb.Name, got.Name)
	assert.Equal(t, kb.Dimension, got.Dimension)

	_, err = s.GetKnowledgeBase(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseNotFound)
}

func TestPostgresStoreIntegration_ChunkLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupPostgresStore(ctx, t)

	kb := domain.NewKnowledgeBase(uuid.NewString(), "user-1", "KB",
		domain.KnowledgeDomainIT, "", 2, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.CreateKnowledgeBase(ctx, kb))

	doc := domain.NewDocument(uuid.NewString(), kb.ID, "uploads/notes.txt", "txt",
		"extracted text", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.AddDocument(ctx, doc))

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	chunks := []*domain.Chunk{
		{ID: uuid.NewString(), KBID: kb.ID, DocumentID: doc.ID, Index: 0,
			Content: "first", Metadata: map[string]string{"chunk_index": "0"},
			Embedding: []float32{1, 0}, CreatedAt: createdAt},
		{ID: uuid.NewString(), KBID: kb.ID, DocumentID: doc.ID, Index: 1,
			Content: "second", Metadata: map[string]string{"chunk_index": "1"},
			Embedding: []float32{0, 1}, CreatedAt: createdAt},
	}
	require.NoError(t, s.AddChunks(ctx, kb.ID, doc.ID, chunks))

	got, err := s.ChunksByKnowledgeBase(ctx, kb.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, []float32{1, 0}, got[0].Embedding)
	assert.Equal(t, "1", got[1].Metadata["chunk_index"])

	require.NoError(t, s.DeleteDocumentChunks(ctx, doc.ID))
	got, err = s.ChunksByKnowledgeBase(ctx, kb.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "tombstoned chunks must not surface")
}

func TestPostgresStoreIntegration_DimensionMismatchRollsBack(t *testing.T) {
	ctx := context.Background()
	s := setupPostgresStore(ctx, t)

	kb := domain.NewKnowledgeBase(uuid.NewString(), "user-1", "KB",
		domain.KnowledgeDomainIT, "", 2, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.CreateKnowledgeBase(ctx, kb))

	doc := domain.NewDocument(uuid.NewString(), kb.ID, "x.txt", "txt", "text",
		time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.AddDocument(ctx, doc))

	chunks := []*domain.Chunk{
		{ID: uuid.NewString(), KBID: kb.ID, DocumentID: doc.ID, Index: 0,
			Content: "ok", Embedding: []float32{1, 0}},
		{ID: uuid.NewString(), KBID: kb.ID, DocumentID: doc.ID, Index: 1,
			Content: "bad", Embedding: []float32{1, 2, 3}},
	}
	err := s.AddChunks(ctx, kb.ID, doc.ID, chunks)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	got, err := s.ChunksByKnowledgeBase(ctx, kb.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "a rejected batch must leave no rows behind")
}

func TestPostgresStoreIntegration_IngestJobQueue(t *testing.T) {
	ctx := context.Background()
	s := setupPostgresStore(ctx, t)

	kb := domain.NewKnowledgeBase(uuid.NewString(), "user-1", "KB",
		domain.KnowledgeDomainIT, "", 2, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.CreateKnowledgeBase(ctx, kb))

	doc := domain.NewDocument(uuid.NewString(), kb.ID, "x.txt", "txt", "text",
		time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.AddDocument(ctx, doc))

	job := domain.NewIngestJob(uuid.NewString(), kb.ID, doc.ID, 800, 100,
		time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, s.EnqueueIngestJob(ctx, job))

	pending, err := s.PendingIngestJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.IncrementIngestJobRetries(ctx, job.ID))
	require.NoError(t, s.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, "boom"))

	pending, err = s.PendingIngestJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
