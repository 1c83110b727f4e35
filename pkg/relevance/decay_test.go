package relevance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/relevance"
	"github.com/mnemos-ai/mnemos-go/pkg/storage"
)

// decayStore records relevance writes and can fail selected rows.
type decayStore struct {
	storage.Store

	active  []*memory.Memory
	written map[int64]float64
	failIDs map[int64]bool
}

func newDecayStore(active ...*memory.Memory) *decayStore {
	return &decayStore{
		active:  active,
		written: make(map[int64]float64),
		failIDs: make(map[int64]bool),
	}
}

func (s *decayStore) ListActive(_ context.Context, _ string, _ *storage.ListOptions) ([]*memory.Memory, error) {
	return s.active, nil
}

func (s *decayStore) UpdateRelevance(_ context.Context, _ string, id int64, relevance float64) error {
	if s.failIDs[id] {
		return errors.New("write refused")
	}
	s.written[id] = relevance
	return nil
}

func TestApplyDecayWritesDriftedRows(t *testing.T) {
	now := time.Now()
	stale := &memory.Memory{
		ID: 1, WorkspaceID: "ws", Relevance: 1.0,
		CreatedAt: now.Add(-168 * time.Hour),
	}
	store := newDecayStore(stale)
	job := relevance.NewDecayJob(store, nil, nil)

	result := job.ApplyDecay(context.Background(), []*memory.Memory{stale}, now)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Failed)
	assert.InDelta(t, 0.5, store.written[1], 1e-9)
	assert.InDelta(t, 0.5, stale.Relevance, 1e-9, "in-memory row tracks the committed value")
}

func TestApplyDecaySkipsTinyDrift(t *testing.T) {
	now := time.Now()
	fresh := &memory.Memory{
		ID: 1, WorkspaceID: "ws",
		CreatedAt: now.Add(-168 * time.Hour),
		Relevance: 0.5 + 5e-5, // within the write threshold
	}
	store := newDecayStore(fresh)
	job := relevance.NewDecayJob(store, nil, nil)

	result := job.ApplyDecay(context.Background(), []*memory.Memory{fresh}, now)

	assert.Equal(t, 1, result.Scanned)
	assert.Zero(t, result.Updated)
	assert.Empty(t, store.written)
}

func TestApplyDecaySkipsConsolidatedAndNil(t *testing.T) {
	now := time.Now()
	merged := &memory.Memory{
		ID: 1, WorkspaceID: "ws", Consolidated: true,
		CreatedAt: now.Add(-500 * time.Hour), Relevance: 1.0,
	}
	store := newDecayStore(merged)
	job := relevance.NewDecayJob(store, nil, nil)

	result := job.ApplyDecay(context.Background(), []*memory.Memory{nil, merged}, now)

	assert.Zero(t, result.Scanned)
	assert.Empty(t, store.written)
	assert.InDelta(t, 1.0, merged.Relevance, 1e-9, "consolidated rows are never touched")
}

func TestApplyDecayCountsRowFailures(t *testing.T) {
	now := time.Now()
	rows := []*memory.Memory{
		{ID: 1, WorkspaceID: "ws", CreatedAt: now.Add(-168 * time.Hour), Relevance: 1.0},
		{ID: 2, WorkspaceID: "ws", CreatedAt: now.Add(-168 * time.Hour), Relevance: 1.0},
		{ID: 3, WorkspaceID: "ws", CreatedAt: now.Add(-168 * time.Hour), Relevance: 1.0},
	}
	store := newDecayStore(rows...)
	store.failIDs[2] = true
	job := relevance.NewDecayJob(store, nil, nil)

	result := job.ApplyDecay(context.Background(), rows, now)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Failed, "a failing row is counted, not propagated")
	assert.InDelta(t, 1.0, rows[1].Relevance, 1e-9, "failed row keeps its old cached value")
}

func TestDecayRunLoadsActiveRows(t *testing.T) {
	now := time.Now()
	row := &memory.Memory{
		ID: 9, WorkspaceID: "ws", CreatedAt: now.Add(-336 * time.Hour), Relevance: 1.0,
	}
	store := newDecayStore(row)
	job := relevance.NewDecayJob(store, relevance.NewScorer(), nil)

	result, err := job.Run(context.Background(), "ws", now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.InDelta(t, 0.25, store.written[9], 1e-9)
}

func TestApplyDecayLargeBatch(t *testing.T) {
	now := time.Now()
	var rows []*memory.Memory
	for i := int64(1); i <= relevance.DecayBatchSize*2+7; i++ {
		rows = append(rows, &memory.Memory{
			ID: i, WorkspaceID: "ws",
			CreatedAt: now.Add(-168 * time.Hour), Relevance: 1.0,
		})
	}
	store := newDecayStore(rows...)
	job := relevance.NewDecayJob(store, nil, nil)

	result := job.ApplyDecay(context.Background(), rows, now)
	assert.Equal(t, len(rows), result.Scanned)
	assert.Equal(t, len(rows), result.Updated)
}
