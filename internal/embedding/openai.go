package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings
	DefaultModel = openai.AdaEmbeddingV2
	// DefaultDimension is the vector dimension produced by ada-002
	DefaultDimension = 1536
	// defaultRequestTimeout bounds a single embedding API call
	defaultRequestTimeout = 30 * time.Second
)

// embeddingAPI is the slice of the OpenAI client we use, kept narrow so
// tests can substitute it.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey    string
	Model     openai.EmbeddingModel
	Dimension int
	Timeout   time.Duration
}

// OpenAIProvider implements Provider using the OpenAI embeddings API.
type OpenAIProvider struct {
	api       embeddingAPI
	model     openai.EmbeddingModel
	dimension int
	timeout   time.Duration
}

// NewOpenAIProvider creates a provider with the given configuration.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &OpenAIProvider{
		api:       openai.NewClient(cfg.APIKey),
		model:     model,
		dimension: dimension,
		timeout:   timeout,
	}
}

func (p *OpenAIProvider) Model() string {
	return string(p.model)
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// EmbedQuery generates an embedding for a single query text.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrEmptyText
	}

	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments generates embeddings for a list of texts in one API call.
// The call carries a bounded timeout; on timeout the whole batch fails.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, domain.ErrEmptyText
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, domain.ProviderError("create embeddings", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, domain.ProviderError("create embeddings",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, domain.ProviderError("create embeddings",
				fmt.Errorf("embedding index %d out of range", data.Index))
		}
		if len(data.Embedding) != p.dimension {
			return nil, domain.ProviderError("create embeddings",
				fmt.Errorf("embedding has %d dimensions, expected %d", len(data.Embedding), p.dimension))
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}
