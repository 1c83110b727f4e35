package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/storage"
	"github.com/mnemos-ai/mnemos-go/pkg/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Client {
	t.Helper()

	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "store_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func seedMemory(t *testing.T, store *sqlite.Client, m *memory.Memory) *memory.Memory {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), m))
	return m
}

func TestInsertAndGetByIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lastAccess := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedMemory(t, store, &memory.Memory{
		ID:          1,
		WorkspaceID: "ws",
		Content:     "the payment service owns invoices",
		Type:        memory.TypeFact,
		Tags:        []string{"Payments", "invoices"},
		Linkages: []memory.Linkage{
			{Kind: memory.LinkFile, Ref: "invoice.go", Label: "touches"},
		},
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		AccessCount:    3,
		LastAccessedAt: &lastAccess,
	})

	rows, err := store.GetByIDs(ctx, "ws", []int64{1, 999})
	require.NoError(t, err)
	require.Len(t, rows, 1, "missing ids are absent, not an error")

	got := rows[0]
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "the payment service owns invoices", got.Content)
	assert.Equal(t, memory.TypeFact, got.Type)
	assert.Equal(t, []string{"invoices", "payments"}, got.Tags, "tags come back normalized")
	assert.Equal(t, []memory.Linkage{{Kind: memory.LinkFile, Ref: "invoice.go", Label: "touches"}}, got.Linkages)
	assert.Equal(t, 3, got.AccessCount)
	require.NotNil(t, got.LastAccessedAt)
	assert.InDelta(t, 1.0, got.Relevance, 1e-9, "relevance defaults to 1.0")
	assert.False(t, got.Consolidated)
	assert.Nil(t, got.ConsolidatedInto)
	assert.Nil(t, got.EmbeddedAt)
}

func TestGetByIDsIsWorkspaceScoped(t *testing.T) {
	store := newTestStore(t)
	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws1", Content: "x", Type: memory.TypeFact})

	rows, err := store.GetByIDs(context.Background(), "ws2", []int64{1})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "old", Type: memory.TypeFact, CreatedAt: now.Add(-2 * time.Hour)})
	seedMemory(t, store, &memory.Memory{ID: 2, WorkspaceID: "ws", Content: "new", Type: memory.TypeFact, CreatedAt: now})
	seedMemory(t, store, &memory.Memory{ID: 3, WorkspaceID: "ws", Content: "merged", Type: memory.TypeFact, CreatedAt: now, Consolidated: true})
	seedMemory(t, store, &memory.Memory{ID: 4, WorkspaceID: "other", Content: "elsewhere", Type: memory.TypeFact, CreatedAt: now})

	rows, err := store.ListActive(ctx, "ws", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2, "consolidated and foreign rows are excluded")
	assert.Equal(t, int64(2), rows[0].ID, "newest first")
	assert.Equal(t, int64(1), rows[1].ID)

	limited, err := store.ListActive(ctx, "ws", &storage.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int64(1), limited[0].ID)
}

func TestUpdateRelevance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "x", Type: memory.TypeFact})

	require.NoError(t, store.UpdateRelevance(ctx, "ws", 1, 0.25))

	rows, err := store.GetByIDs(ctx, "ws", []int64{1})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, rows[0].Relevance, 1e-9)

	err = store.UpdateRelevance(ctx, "ws", 999, 0.5)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestTouch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "x", Type: memory.TypeFact})

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Touch(ctx, "ws", 1, at))
	require.NoError(t, store.Touch(ctx, "ws", 1, at))

	rows, err := store.GetByIDs(ctx, "ws", []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 2, rows[0].AccessCount)
	require.NotNil(t, rows[0].LastAccessedAt)

	err = store.Touch(ctx, "ws", 999, at)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestTouchAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "a", Type: memory.TypeFact})
	seedMemory(t, store, &memory.Memory{ID: 2, WorkspaceID: "ws", Content: "b", Type: memory.TypeFact})

	at := time.Now().UTC().Truncate(time.Second)
	n, err := store.TouchAll(ctx, "ws", []int64{1, 2, 999}, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "missing rows are skipped, not an error")

	rows, err := store.GetByIDs(ctx, "ws", []int64{1, 2})
	require.NoError(t, err)
	for _, m := range rows {
		assert.Equal(t, 1, m.AccessCount)
		require.NotNil(t, m.LastAccessedAt)
	}

	n, err = store.TouchAll(ctx, "ws", nil, at)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConsolidateCommitsAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "a", Type: memory.TypeFact})
	seedMemory(t, store, &memory.Memory{ID: 2, WorkspaceID: "ws", Content: "b", Type: memory.TypeFact})

	merged := &memory.Memory{
		ID: 100, WorkspaceID: "ws", Content: "merged summary",
		Type: memory.TypeFact, AccessCount: 0,
	}
	record := &memory.Consolidation{
		ID: 100, WorkspaceID: "ws", Summary: "merged summary",
		SourceIDs: []int64{1, 2}, Type: memory.TypeFact,
		Method: memory.MethodTemplate, TemplateSummary: "merged summary",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, store.Consolidate(ctx, merged, record, []int64{1, 2}))

	rows, err := store.GetByIDs(ctx, "ws", []int64{1, 2, 100})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, m := range rows {
		if m.ID == 100 {
			assert.False(t, m.Consolidated)
			continue
		}
		assert.True(t, m.Consolidated)
		require.NotNil(t, m.ConsolidatedInto)
		assert.Equal(t, int64(100), *m.ConsolidatedInto)
	}

	records, err := store.ListConsolidations(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []int64{1, 2}, records[0].SourceIDs)
	assert.Equal(t, memory.MethodTemplate, records[0].Method)
}

func TestConsolidateRollsBackOnClaimedSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "a", Type: memory.TypeFact})
	into := int64(50)
	seedMemory(t, store, &memory.Memory{
		ID: 2, WorkspaceID: "ws", Content: "b", Type: memory.TypeFact,
		Consolidated: true, ConsolidatedInto: &into,
	})

	merged := &memory.Memory{ID: 100, WorkspaceID: "ws", Content: "m", Type: memory.TypeFact}
	record := &memory.Consolidation{
		ID: 100, WorkspaceID: "ws", Summary: "m", SourceIDs: []int64{1, 2},
		Method: memory.MethodTemplate, CreatedAt: time.Now().UTC(),
	}

	err := store.Consolidate(ctx, merged, record, []int64{1, 2})
	require.Error(t, err, "a concurrently claimed source aborts the merge")

	// Nothing from the failed transaction is visible.
	rows, getErr := store.GetByIDs(ctx, "ws", []int64{1, 100})
	require.NoError(t, getErr)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.False(t, rows[0].Consolidated)

	records, listErr := store.ListConsolidations(ctx, "ws")
	require.NoError(t, listErr)
	assert.Empty(t, records)
}

func TestMarkConsolidated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "a", Type: memory.TypeFact})
	other := int64(7)
	seedMemory(t, store, &memory.Memory{
		ID: 2, WorkspaceID: "ws", Content: "b", Type: memory.TypeFact,
		Consolidated: true, ConsolidatedInto: &other,
	})

	n, err := store.MarkConsolidated(ctx, "ws", []int64{1, 2, 999}, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "terminal and missing rows are skipped")

	rows, err := store.GetByIDs(ctx, "ws", []int64{2})
	require.NoError(t, err)
	assert.Equal(t, other, *rows[0].ConsolidatedInto, "already claimed rows keep their target")
}

func TestEmbeddingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedMemory(t, store, &memory.Memory{ID: 1, WorkspaceID: "ws", Content: "a", Type: memory.TypeFact, CreatedAt: now.Add(-2 * time.Hour)})
	seedMemory(t, store, &memory.Memory{ID: 2, WorkspaceID: "ws", Content: "b", Type: memory.TypeFact, CreatedAt: now.Add(-time.Hour)})

	pending, err := store.ListUnembedded(ctx, "ws", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].ID, "oldest first")

	require.NoError(t, store.UpsertEmbedding(ctx, "ws", 1, []float64{1, 0}, now))

	pending, err = store.ListUnembedded(ctx, "ws", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	rows, err := store.GetByIDs(ctx, "ws", []int64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, rows[0].Embedding)
	assert.NotNil(t, rows[0].EmbeddedAt)

	err = store.UpsertEmbedding(ctx, "ws", 999, []float64{1}, now)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestVectorSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for id, vec := range map[int64][]float64{
		1: {1, 0},
		2: {0.9, 0.1},
		3: {0, 1},
	} {
		seedMemory(t, store, &memory.Memory{ID: id, WorkspaceID: "ws", Content: "v", Type: memory.TypeFact, CreatedAt: now})
		require.NoError(t, store.UpsertEmbedding(ctx, "ws", id, vec, now))
	}
	// Unembedded and consolidated rows never match.
	seedMemory(t, store, &memory.Memory{ID: 4, WorkspaceID: "ws", Content: "raw", Type: memory.TypeFact, CreatedAt: now})

	matches, err := store.VectorSearch(ctx, "ws", []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, int64(2), matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}
