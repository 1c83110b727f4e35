package consolidation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-go/pkg/consolidation"
	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

func consolidationRecord(id int64, sourceIDs ...int64) *memory.Consolidation {
	return &memory.Consolidation{
		ID:          id,
		WorkspaceID: "ws",
		Summary:     "merged",
		SourceIDs:   sourceIDs,
		Method:      memory.MethodTemplate,
		CreatedAt:   time.Now(),
	}
}

func TestRecoverRepairsOrphanedRecord(t *testing.T) {
	// The record exists but no source was ever flipped.
	store := newFakeStore(
		activeMemory(1, memory.TypeFact, "one"),
		activeMemory(2, memory.TypeFact, "two"),
	)
	store.records = append(store.records, consolidationRecord(100, 1, 2))
	engine := consolidation.NewEngine(store, testNode(t))

	report, err := engine.Recover(context.Background(), "ws")
	require.NoError(t, err)

	assert.Equal(t, 1, report.RecordsChecked)
	assert.Equal(t, 1, report.Orphaned)
	assert.Equal(t, 2, report.Repaired)
	assert.Zero(t, report.Conflicts)

	for _, id := range []int64{1, 2} {
		assert.True(t, store.rows[id].Consolidated)
		require.NotNil(t, store.rows[id].ConsolidatedInto)
		assert.Equal(t, int64(100), *store.rows[id].ConsolidatedInto)
	}
}

func TestRecoverRepairsPartialFlip(t *testing.T) {
	flipped := activeMemory(1, memory.TypeFact, "one")
	flipped.Consolidated = true
	into := int64(100)
	flipped.ConsolidatedInto = &into

	store := newFakeStore(flipped, activeMemory(2, memory.TypeFact, "two"))
	store.records = append(store.records, consolidationRecord(100, 1, 2))
	engine := consolidation.NewEngine(store, testNode(t))

	report, err := engine.Recover(context.Background(), "ws")
	require.NoError(t, err)

	assert.Zero(t, report.Orphaned, "a partially flipped set is not orphaned")
	assert.Equal(t, 1, report.Repaired)
	assert.True(t, store.rows[2].Consolidated)
}

func TestRecoverLeavesConflictsAlone(t *testing.T) {
	// Source 1 was claimed by a different merge; the first merge wins.
	claimed := activeMemory(1, memory.TypeFact, "one")
	claimed.Consolidated = true
	other := int64(999)
	claimed.ConsolidatedInto = &other

	store := newFakeStore(claimed, activeMemory(2, memory.TypeFact, "two"))
	store.records = append(store.records, consolidationRecord(100, 1, 2))
	engine := consolidation.NewEngine(store, testNode(t))

	report, err := engine.Recover(context.Background(), "ws")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, int64(999), *store.rows[1].ConsolidatedInto, "conflicting flip is preserved")
	assert.Equal(t, int64(100), *store.rows[2].ConsolidatedInto)
}

func TestRecoverCleanWorkspaceIsNoop(t *testing.T) {
	store := newFakeStore(
		activeMemory(1, memory.TypeFact, "one"),
		activeMemory(2, memory.TypeFact, "two"),
	)
	engine := consolidation.NewEngine(store, testNode(t))

	// Commit a healthy merge, then sweep.
	_, err := engine.ConsolidateExplicit(context.Background(), "ws", []int64{1, 2}, nil)
	require.NoError(t, err)

	report, err := engine.Recover(context.Background(), "ws")
	require.NoError(t, err)

	assert.Equal(t, 1, report.RecordsChecked)
	assert.Zero(t, report.Orphaned)
	assert.Zero(t, report.Repaired)
	assert.Zero(t, report.Conflicts)
}
