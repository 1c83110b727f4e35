// Package storage provides the interface and shared types for Mnemos
// storage backends.
//
// It defines the Store interface that all backends (SQLite, PostgreSQL,
// MySQL) must satisfy. Every operation is scoped to one workspace; a
// backend must never return or modify rows outside the workspace named in
// the call.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

// ErrNotFound indicates that a requested row does not exist in the
// workspace, or is not visible to the caller.
var ErrNotFound = errors.New("storage: row not found")

// ListOptions controls ListActive pagination.
type ListOptions struct {
	// Limit caps the number of rows returned (0 = backend default).
	Limit int

	// Offset skips rows for pagination.
	Offset int
}

// Store defines the persistence contract for one memory database.
//
// Which rows are "active" is fixed by the schema (consolidated = false);
// any further candidate-set predicates are the caller's responsibility.
type Store interface {
	// Insert inserts a memory row.
	Insert(ctx context.Context, m *memory.Memory) error

	// GetByIDs returns the rows with the given IDs within one workspace.
	// Missing IDs are simply absent from the result, not an error.
	GetByIDs(ctx context.Context, workspaceID string, ids []int64) ([]*memory.Memory, error)

	// ListActive returns the workspace's non-consolidated rows, newest
	// first.
	ListActive(ctx context.Context, workspaceID string, opts *ListOptions) ([]*memory.Memory, error)

	// ListUnembedded returns up to limit active rows whose embedded_at is
	// null, oldest first, for the embedding backfill job.
	ListUnembedded(ctx context.Context, workspaceID string, limit int) ([]*memory.Memory, error)

	// UpdateRelevance point-updates one row's cached relevance.
	UpdateRelevance(ctx context.Context, workspaceID string, id int64, relevance float64) error

	// Touch records a retrieval: increments access_count and sets
	// last_accessed_at.
	Touch(ctx context.Context, workspaceID string, id int64, at time.Time) error

	// TouchAll records a retrieval for several rows in one statement,
	// returning how many rows changed. Missing IDs are skipped, not an
	// error.
	TouchAll(ctx context.Context, workspaceID string, ids []int64, at time.Time) (int64, error)

	// Consolidate commits one merge atomically: inserts the merged memory
	// row and its consolidation record, and flips every source row to
	// consolidated = true with consolidated_into = merged.ID. Backends
	// wrap the whole sequence in a single transaction.
	Consolidate(ctx context.Context, merged *memory.Memory, record *memory.Consolidation, sourceIDs []int64) error

	// MarkConsolidated flips the given rows to consolidated = true with
	// consolidated_into = into, returning how many rows changed. Used by
	// the recovery sweep to repair partially flipped source sets.
	MarkConsolidated(ctx context.Context, workspaceID string, ids []int64, into int64) (int64, error)

	// ListConsolidations returns the workspace's consolidation records.
	ListConsolidations(ctx context.Context, workspaceID string) ([]*memory.Consolidation, error)

	// UpsertEmbedding stores a row's embedding vector and stamps
	// embedded_at.
	UpsertEmbedding(ctx context.Context, workspaceID string, id int64, embedding []float64, at time.Time) error

	// VectorSearch returns the top-K active rows of the workspace by
	// similarity to the query vector, highest first.
	VectorSearch(ctx context.Context, workspaceID string, embedding []float64, topK int) ([]*VectorMatch, error)

	// Close closes the store and releases resources.
	Close() error
}

// VectorMatch is one similarity hit from VectorSearch.
type VectorMatch struct {
	// ID is the matched memory's ID.
	ID int64

	// Score is the cosine similarity to the query vector.
	Score float64
}
