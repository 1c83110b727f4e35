// Package summarizer provides the interface for summary-generation
// providers used by the consolidation engine.
//
// The summarizer is an optional collaborator: when no provider is
// configured, or a provider call fails, consolidation falls back to its
// deterministic template summary.
package summarizer

import (
	"context"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

// Provider defines the interface for summary generation.
type Provider interface {
	// Summarize produces a compact prose summary of the given memories.
	// The memories all belong to one workspace and one merge cluster.
	Summarize(ctx context.Context, memories []*memory.Memory) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}
