package relevance

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/storage"
)

const (
	// DecayBatchSize is how many rows the decay job processes per batch.
	// Kept small to respect external-provider rate limits shared with the
	// embedding backfill.
	DecayBatchSize = 50

	// decayWriteThreshold is the minimum relevance drift that triggers a
	// write-back. Smaller drifts are treated as noise.
	decayWriteThreshold = 1e-4
)

// DecayResult reports one decay pass over a workspace.
type DecayResult struct {
	// Scanned is how many rows were examined.
	Scanned int `json:"scanned"`

	// Updated is how many rows were actually written back.
	Updated int `json:"updated"`

	// Failed is how many rows hit a store error. Row failures are counted,
	// not propagated.
	Failed int `json:"failed"`
}

// DecayJob recomputes and persists cached relevance for all active
// memories of one workspace.
//
// The job scores each row with empty query terms (recency, access boost,
// and last-access recency only) and writes the result back when it drifts
// from the stored value by more than 1e-4. A single row failure never
// aborts the batch; it is counted and logged.
//
// Scheduling (which workspaces and how often) belongs to the caller.
type DecayJob struct {
	store  storage.Store
	scorer *Scorer
	logger *zap.Logger
}

// NewDecayJob creates a decay job over the given store.
//
// A nil logger defaults to zap.NewNop(), keeping the job silent.
func NewDecayJob(store storage.Store, scorer *Scorer, logger *zap.Logger) *DecayJob {
	if scorer == nil {
		scorer = NewScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecayJob{
		store:  store,
		scorer: scorer,
		logger: logger,
	}
}

// ApplyDecay recomputes relevance for the supplied rows and persists the
// changed values.
//
// The rows must all belong to one workspace; consolidated rows are
// skipped. Returns the count of rows actually updated along with the
// per-row failure count.
func (j *DecayJob) ApplyDecay(ctx context.Context, memories []*memory.Memory, now time.Time) DecayResult {
	if now.IsZero() {
		now = time.Now()
	}

	var result DecayResult
	for start := 0; start < len(memories); start += DecayBatchSize {
		end := start + DecayBatchSize
		if end > len(memories) {
			end = len(memories)
		}

		for _, m := range memories[start:end] {
			if m == nil || m.Consolidated {
				continue
			}
			result.Scanned++

			fresh := j.scorer.ScoreMemory(m, nil, now)
			if math.Abs(fresh-m.Relevance) <= decayWriteThreshold {
				continue
			}

			if err := j.store.UpdateRelevance(ctx, m.WorkspaceID, m.ID, fresh); err != nil {
				result.Failed++
				j.logger.Warn("decay write-back failed",
					zap.String("workspaceID", m.WorkspaceID),
					zap.Int64("memoryID", m.ID),
					zap.Error(err),
				)
				continue
			}

			m.Relevance = fresh
			result.Updated++
		}
	}

	j.logger.Debug("decay pass complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)

	return result
}

// Run loads one workspace's active rows and applies decay to them.
func (j *DecayJob) Run(ctx context.Context, workspaceID string, now time.Time) (DecayResult, error) {
	memories, err := j.store.ListActive(ctx, workspaceID, nil)
	if err != nil {
		return DecayResult{}, err
	}
	return j.ApplyDecay(ctx, memories, now), nil
}
