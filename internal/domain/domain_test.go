package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKnowledgeBase(t *testing.T) {
	now := time.Now().UTC()

	valid := NewKnowledgeBase("kb-1", "user-1", "Backend Interview Prep", KnowledgeDomainIT, "backend", 1536, now)
	require.NoError(t, ValidateKnowledgeBase(valid))

	tests := []struct {
		name   string
		mutate func(kb *KnowledgeBase)
	}{
		{"nil dimension", func(kb *KnowledgeBase) { kb.Dimension = 0 }},
		{"missing ID", func(kb *KnowledgeBase) { kb.ID = "" }},
		{"missing owner", func(kb *KnowledgeBase) { kb.OwnerID = "" }},
		{"missing name", func(kb *KnowledgeBase) { kb.Name = "" }},
		{"bad domain", func(kb *KnowledgeBase) { kb.Domain = "astrology" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := *valid
			tt.mutate(&kb)
			err := ValidateKnowledgeBase(&kb)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidateChunk(t *testing.T) {
	chunk := &Chunk{
		KBID:      "kb-1",
		Content:   "some content",
		Embedding: []float32{0.1, 0.2, 0.3},
	}

	require.NoError(t, ValidateChunk(chunk, 3))

	err := ValidateChunk(chunk, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.True(t, IsValidation(err))

	empty := &Chunk{KBID: "kb-1", Embedding: []float32{0.1}}
	assert.Error(t, ValidateChunk(empty, 1))
}

func TestValidateIngestJob(t *testing.T) {
	job := NewIngestJob("job-1", "kb-1", "doc-1", 1000, 200, time.Now().UTC())
	require.NoError(t, ValidateIngestJob(job))
	assert.Equal(t, IngestJobStatusPending, job.Status)

	job.Status = "cancelled"
	assert.Error(t, ValidateIngestJob(job))

	job.Status = IngestJobStatusPending
	job.DocumentID = ""
	assert.Error(t, ValidateIngestJob(job))
}

func TestDomainErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("lookup kb: %w", ErrKnowledgeBaseNotFound)
	assert.True(t, errors.Is(wrapped, ErrKnowledgeBaseNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))

	storage := StorageError("insert chunks", errors.New("connection refused"))
	assert.True(t, IsStorage(storage))
	assert.Contains(t, storage.Error(), "connection refused")

	provider := ProviderError("embed batch", errors.New("timeout"))
	assert.True(t, IsProvider(provider))
	assert.False(t, IsStorage(provider))
}
