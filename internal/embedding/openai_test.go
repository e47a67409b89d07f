package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

type stubAPI struct {
	resp openai.EmbeddingResponse
	err  error
	got  openai.EmbeddingRequest
}

func (s *stubAPI) CreateEmbeddings(_ context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	if r, ok := req.(openai.EmbeddingRequest); ok {
		s.got = r
	}
	return s.resp, s.err
}

func newTestProvider(api embeddingAPI, dimension int) *OpenAIProvider {
	return &OpenAIProvider{
		api:       api,
		model:     DefaultModel,
		dimension: dimension,
		timeout:   time.Second,
	}
}

func TestOpenAIEmbedDocuments(t *testing.T) {
	api := &stubAPI{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Index: 1, Embedding: []float32{3, 4}},
				{Index: 0, Embedding: []float32{1, 2}},
			},
		},
	}
	p := newTestProvider(api, 2)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	// Results are reordered by the response index field
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vectors)
	assert.Equal(t, []string{"first", "second"}, api.got.Input)
}

func TestOpenAIEmbedQueryRejectsEmptyText(t *testing.T) {
	p := newTestProvider(&stubAPI{}, 2)

	_, err := p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrEmptyText)
}

func TestOpenAIDimensionMismatchIsProviderError(t *testing.T) {
	api := &stubAPI{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Index: 0, Embedding: []float32{1, 2, 3}}},
		},
	}
	p := newTestProvider(api, 2)

	_, err := p.EmbedDocuments(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.True(t, domain.IsProvider(err))
}

func TestOpenAIUpstreamErrorIsProviderError(t *testing.T) {
	api := &stubAPI{err: errors.New("rate limited")}
	p := newTestProvider(api, 2)

	_, err := p.EmbedDocuments(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.True(t, domain.IsProvider(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIResponseLengthMismatch(t *testing.T) {
	api := &stubAPI{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Index: 0, Embedding: []float32{1, 2}}},
		},
	}
	p := newTestProvider(api, 2)

	_, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, domain.IsProvider(err))
}
