package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/mentorkb/internal/cache"
	"github.com/veldtlabs/mentorkb/internal/domain"
)

// fakeProvider derives a deterministic vector from the text length so tests
// can tell outputs apart, and counts every invocation.
type fakeProvider struct {
	mu          sync.Mutex
	queryCalls  int
	batchCalls  int
	seenBatches [][]string
	fail        bool
}

func (p *fakeProvider) Model() string  { return "fake-model-v1" }
func (p *fakeProvider) Dimension() int { return 2 }

func (p *fakeProvider) vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (p *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryCalls++
	if p.fail {
		return nil, domain.ProviderError("embed query", errors.New("upstream down"))
	}
	return p.vectorFor(text), nil
}

func (p *fakeProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batchCalls++
	p.seenBatches = append(p.seenBatches, append([]string(nil), texts...))
	if p.fail {
		return nil, domain.ProviderError("embed documents", errors.New("upstream down"))
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vectorFor(text)
	}
	return vectors, nil
}

// failingCache errors on every operation, simulating an unreachable store.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingCache) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestEmbedQueryCacheCoherence(t *testing.T) {
	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, cache.NewMemoryCache(), time.Hour, 32)
	ctx := context.Background()

	first, err := cached.EmbedQuery(ctx, "what is an index")
	require.NoError(t, err)

	second, err := cached.EmbedQuery(ctx, "what is an index")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.queryCalls, "provider must be invoked once within the TTL")
}

func TestEmbedDocumentsPreservesOrderAcrossHitsAndMisses(t *testing.T) {
	provider := &fakeProvider{}
	store := cache.NewMemoryCache()
	cached := NewCachedProvider(provider, store, time.Hour, 32)
	ctx := context.Background()

	// Warm the cache for "bb" only
	_, err := cached.EmbedDocuments(ctx, []string{"bb"})
	require.NoError(t, err)
	require.Equal(t, 1, provider.batchCalls)

	texts := []string{"a", "bb", "ccc"}
	vectors, err := cached.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 1}, vectors[1])
	assert.Equal(t, []float32{3, 1}, vectors[2])

	// Only the misses went upstream
	require.Equal(t, 2, provider.batchCalls)
	assert.Equal(t, []string{"a", "ccc"}, provider.seenBatches[1])
}

func TestEmbedDocumentsDeduplicatesWithinBatch(t *testing.T) {
	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, cache.NewMemoryCache(), time.Hour, 32)
	ctx := context.Background()

	texts := []string{"same", "other", "same", "same"}
	vectors, err := cached.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	assert.Equal(t, vectors[0], vectors[2])
	assert.Equal(t, vectors[0], vectors[3])

	require.Equal(t, 1, provider.batchCalls)
	assert.Equal(t, []string{"same", "other"}, provider.seenBatches[0], "each distinct text computed once")
}

func TestEmbedDocumentsRespectsBatchSize(t *testing.T) {
	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, cache.NewMemoryCache(), time.Hour, 2)
	ctx := context.Background()

	_, err := cached.EmbedDocuments(ctx, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	require.Equal(t, 3, provider.batchCalls)
	assert.Equal(t, []string{"a", "b"}, provider.seenBatches[0])
	assert.Equal(t, []string{"c", "d"}, provider.seenBatches[1])
	assert.Equal(t, []string{"e"}, provider.seenBatches[2])
}

func TestCacheFailureDegradesToCompute(t *testing.T) {
	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, failingCache{}, time.Hour, 32)
	ctx := context.Background()

	vector, err := cached.EmbedQuery(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, vector)

	// Every call recomputes because nothing can be cached, but none fail.
	_, err = cached.EmbedQuery(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.queryCalls)

	vectors, err := cached.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
}

func TestProviderFailureIsFatalForBatch(t *testing.T) {
	provider := &fakeProvider{fail: true}
	cached := NewCachedProvider(provider, cache.NewMemoryCache(), time.Hour, 32)
	ctx := context.Background()

	_, err := cached.EmbedDocuments(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, domain.IsProvider(err))

	_, err = cached.EmbedQuery(ctx, "a")
	require.Error(t, err)
	assert.True(t, domain.IsProvider(err))
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	provider := &fakeProvider{}
	cached := NewCachedProvider(provider, cache.NewMemoryCache(), time.Hour, 32)

	vectors, err := cached.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, 0, provider.batchCalls)
}

func TestCacheKeyIncludesModel(t *testing.T) {
	provider := &fakeProvider{}
	store := cache.NewMemoryCache()
	cached := NewCachedProvider(provider, store, time.Hour, 32)
	ctx := context.Background()

	_, err := cached.EmbedQuery(ctx, "text")
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	// A provider with a different model id must not share entries.
	other := NewCachedProvider(&differentModel{}, store, time.Hour, 32)
	_, err = other.EmbedQuery(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

type differentModel struct{ fakeProvider }

func (*differentModel) Model() string { return "fake-model-v2" }

func TestNullProviderAlwaysFails(t *testing.T) {
	p := NewNullProvider(1536)
	ctx := context.Background()

	assert.Equal(t, 1536, p.Dimension())

	_, err := p.EmbedQuery(ctx, "anything")
	assert.ErrorIs(t, err, domain.ErrNoEmbeddingProvider)

	_, err = p.EmbedDocuments(ctx, []string{"anything"})
	assert.ErrorIs(t, err, domain.ErrNoEmbeddingProvider)
}
