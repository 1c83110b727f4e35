// Package embedder provides the interface for text embedding providers.
//
// The embedder is an optional collaborator: when no provider is
// configured, every dependent operation (hybrid retrieval, consolidation
// indexing, backfill) degrades to a no-op rather than failing.
package embedder

import "context"

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple texts into vectors in one call.
	// More efficient than repeated Embed calls against rate-limited
	// providers.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of vectors this provider produces.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
