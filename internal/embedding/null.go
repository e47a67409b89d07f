package embedding

import (
	"context"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

// NullProvider is the provider used when no embedding credential is
// configured. Every call fails deterministically with a provider error so a
// misconfigured deployment is visible instead of silently producing
// meaningless vectors.
type NullProvider struct {
	dimension int
}

// NewNullProvider creates a NullProvider reporting the given dimension.
func NewNullProvider(dimension int) *NullProvider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &NullProvider{dimension: dimension}
}

func (p *NullProvider) Model() string {
	return "null"
}

func (p *NullProvider) Dimension() int {
	return p.dimension
}

func (p *NullProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, domain.ErrNoEmbeddingProvider
}

func (p *NullProvider) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, domain.ErrNoEmbeddingProvider
}
