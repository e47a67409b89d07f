// Package search implements retrieval over the chunks of one knowledge
// base: cosine similarity search with a bounded result cache, and hybrid
// search blending cosine similarity with keyword presence.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/veldtlabs/mentorkb/internal/cache"
	"github.com/veldtlabs/mentorkb/internal/domain"
	"github.com/veldtlabs/mentorkb/internal/store"
)

const (
	// DefaultResultTTL bounds how long a ranked result list is served from
	// the cache without rescanning.
	DefaultResultTTL = 30 * time.Minute
	// DefaultTopK is used when the caller passes a non-positive topK.
	DefaultTopK = 5

	resultKeyPrefix = "similarity:"

	cosineWeight  = 0.7
	keywordWeight = 0.3
)

// Result is one ranked chunk. The similarity score is internal and not
// exposed to callers.
type Result struct {
	ChunkID  string            `json:"chunk_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Engine answers similarity and hybrid queries with a full scan over the
// live chunks of a knowledge base. Reads are safe to run concurrently with
// ingestion; a scan may observe a knowledge base mid-ingestion.
type Engine struct {
	store     store.Store
	cache     cache.Cache
	resultTTL time.Duration
}

// NewEngine builds an Engine over st. c may be nil, in which case results
// are never cached. A non-positive resultTTL falls back to the default.
func NewEngine(st store.Store, c cache.Cache, resultTTL time.Duration) *Engine {
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	return &Engine{store: st, cache: c, resultTTL: resultTTL}
}

// SimilaritySearch ranks the chunks of kbID by cosine similarity to
// queryVector and returns the top topK. An unknown kbID yields an empty
// list, not an error. A ranked list is cached per (kbID, topK, query
// vector digest); cache failures degrade to a rescan.
func (e *Engine) SimilaritySearch(ctx context.Context, queryVector []float32, kbID string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	key := resultKey(kbID, topK, queryVector)
	if cached, ok := e.lookupResults(ctx, key); ok {
		return cached, nil
	}

	chunks, err := e.store.ChunksByKnowledgeBase(ctx, kbID, 0)
	if err != nil {
		return nil, err
	}

	results := rank(chunks, topK, func(c *domain.Chunk) float64 {
		return Cosine(queryVector, c.Embedding)
	})
	e.storeResults(ctx, key, results)
	return results, nil
}

// HybridSearch ranks chunks by 0.7·cosine + 0.3·keyword, where the keyword
// component is 1 when keyword appears case-insensitively in the chunk
// content and 0 otherwise. Hybrid results are not cached.
func (e *Engine) HybridSearch(ctx context.Context, queryVector []float32, keyword, kbID string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	chunks, err := e.store.ChunksByKnowledgeBase(ctx, kbID, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(keyword))
	results := rank(chunks, topK, func(c *domain.Chunk) float64 {
		return hybridScore(queryVector, c, needle)
	})
	return results, nil
}

// rank scores every chunk, sorts descending and truncates to topK. The
// sort is stable so ties keep the store's retrieval order.
func rank(chunks []*domain.Chunk, topK int, score func(*domain.Chunk) float64) []Result {
	type scored struct {
		result Result
		score  float64
	}
	ranked := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		ranked = append(ranked, scored{
			result: Result{ChunkID: c.ID, Content: c.Content, Metadata: c.Metadata},
			score:  score(c),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	results := make([]Result, len(ranked))
	for i, r := range ranked {
		results[i] = r.result
	}
	return results
}

func hybridScore(queryVector []float32, c *domain.Chunk, needle string) float64 {
	score := cosineWeight * Cosine(queryVector, c.Embedding)
	if needle != "" && strings.Contains(strings.ToLower(c.Content), needle) {
		score += keywordWeight
	}
	return score
}

// Cosine returns dot(a,b)/(‖a‖·‖b‖). Mismatched lengths or a zero-norm
// vector score 0; it never divides by zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// resultKey digests the full query vector, not a prefix, so distinct
// queries never collide on a shared key.
func resultKey(kbID string, topK int, queryVector []float32) string {
	h := sha256.New()
	h.Write([]byte(kbID))
	h.Write([]byte{0})
	_ = binary.Write(h, binary.LittleEndian, int64(topK))
	_ = binary.Write(h, binary.LittleEndian, queryVector)
	return resultKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) lookupResults(ctx context.Context, key string) ([]Result, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("result cache: get failed (treating as miss): %v", err)
		}
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		log.Printf("result cache: corrupt entry %s (treating as miss): %v", key, err)
		return nil, false
	}
	return results, true
}

func (e *Engine) storeResults(ctx context.Context, key string, results []Result) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		log.Printf("result cache: marshal failed: %v", err)
		return
	}
	if err := e.cache.Set(ctx, key, data, e.resultTTL); err != nil {
		log.Printf("result cache: set failed: %v", err)
	}
}
