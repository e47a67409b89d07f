package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/veldtlabs/mentorkb/internal/cache"
)

const (
	// DefaultCacheTTL bounds how long a cached vector is served without
	// recomputation.
	DefaultCacheTTL = time.Hour
	// DefaultBatchSize is the number of uncached texts sent to the provider
	// per request.
	DefaultBatchSize = 32

	cacheKeyPrefix = "embedding:"
)

// CachedProvider wraps a Provider with a content-addressed get-or-compute
// cache. The cache key is a deterministic function of (model id, exact
// text), so identical inputs under the same model resolve to the same
// cached vector without re-invoking the provider. The cache is best-effort:
// any cache failure degrades to compute and is logged, never surfaced.
type CachedProvider struct {
	provider  Provider
	cache     cache.Cache
	ttl       time.Duration
	batchSize int
}

// NewCachedProvider wraps provider with c. Non-positive ttl/batch values
// fall back to the defaults.
func NewCachedProvider(provider Provider, c cache.Cache, ttl time.Duration, batchSize int) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CachedProvider{
		provider:  provider,
		cache:     c,
		ttl:       ttl,
		batchSize: batchSize,
	}
}

func (p *CachedProvider) Model() string {
	return p.provider.Model()
}

func (p *CachedProvider) Dimension() int {
	return p.provider.Dimension()
}

// cacheKey derives the content address for one text under the current
// model. The full model:text pair is hashed, so distinct inputs cannot
// collide short of a sha256 collision.
func (p *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(p.provider.Model() + ":" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (p *CachedProvider) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("embedding cache: get failed (treating as miss): %v", err)
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		log.Printf("embedding cache: corrupt entry %s (treating as miss): %v", key, err)
		return nil, false
	}
	return vector, true
}

func (p *CachedProvider) store(ctx context.Context, key string, vector []float32) {
	raw, err := json.Marshal(vector)
	if err != nil {
		log.Printf("embedding cache: marshal failed: %v", err)
		return
	}
	if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
		log.Printf("embedding cache: set failed: %v", err)
	}
}

// EmbedQuery returns the cached vector for text when present, otherwise
// computes it via the wrapped provider and writes it back.
func (p *CachedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := p.cacheKey(text)
	if vector, ok := p.lookup(ctx, key); ok {
		return vector, nil
	}

	vector, err := p.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	p.store(ctx, key, vector)
	return vector, nil
}

// EmbedDocuments resolves each text from the cache where possible and sends
// only the distinct uncached texts to the provider, in batches. The result
// preserves input order and length; duplicate texts within one call resolve
// to the same vector and are computed at most once.
func (p *CachedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))

	// Positions of every text that still needs computing, grouped so a
	// duplicated text is computed once and fanned back out.
	pending := make(map[string][]int)
	var missing []string

	for i, text := range texts {
		if positions, seen := pending[text]; seen {
			pending[text] = append(positions, i)
			continue
		}
		if vector, ok := p.lookup(ctx, p.cacheKey(text)); ok {
			vectors[i] = vector
			continue
		}
		pending[text] = []int{i}
		missing = append(missing, text)
	}

	for start := 0; start < len(missing); start += p.batchSize {
		end := start + p.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		computed, err := p.provider.EmbedDocuments(ctx, batch)
		if err != nil {
			return nil, err
		}

		for j, text := range batch {
			vector := computed[j]
			p.store(ctx, p.cacheKey(text), vector)
			for _, position := range pending[text] {
				vectors[position] = vector
			}
		}
	}

	return vectors, nil
}
