package consolidation

import (
	"context"

	"go.uber.org/zap"
)

// RecoveryReport summarizes one recovery sweep over a workspace.
type RecoveryReport struct {
	// RecordsChecked is how many consolidation records were examined.
	RecordsChecked int `json:"records_checked"`

	// Orphaned is how many records had no source flipped at all.
	Orphaned int `json:"orphaned"`

	// Repaired is how many source rows were flipped by the sweep.
	Repaired int `json:"repaired"`

	// Conflicts is how many source rows were found consolidated into a
	// different record. These are left alone: the first merge wins.
	Conflicts int `json:"conflicts"`
}

// Recover repairs interrupted merges in one workspace.
//
// The storage contract commits merges transactionally, but databases
// written by earlier revisions of this engine may carry partial states:
// a consolidation record whose sources were never flipped (orphaned), or
// a source set flipped only partway. The sweep rolls every such merge
// forward, flipping the remaining sources to point at the record, so
// the data is consistent before it is queried again.
//
// Run the sweep before serving reads from a database of unknown
// provenance.
func (e *Engine) Recover(ctx context.Context, workspaceID string) (RecoveryReport, error) {
	var report RecoveryReport

	records, err := e.store.ListConsolidations(ctx, workspaceID)
	if err != nil {
		return report, err
	}

	for _, record := range records {
		report.RecordsChecked++

		sources, err := e.store.GetByIDs(ctx, workspaceID, record.SourceIDs)
		if err != nil {
			e.logger.Warn("recovery source fetch failed",
				zap.String("workspaceID", workspaceID),
				zap.Int64("consolidationID", record.ID),
				zap.Error(err),
			)
			continue
		}

		var unflipped []int64
		flipped := 0
		for _, m := range sources {
			switch {
			case !m.Consolidated:
				unflipped = append(unflipped, m.ID)
			case m.ConsolidatedInto != nil && *m.ConsolidatedInto != record.ID:
				report.Conflicts++
			default:
				flipped++
			}
		}

		if len(unflipped) == 0 {
			continue
		}
		if flipped == 0 {
			report.Orphaned++
		}

		n, err := e.store.MarkConsolidated(ctx, workspaceID, unflipped, record.ID)
		if err != nil {
			e.logger.Warn("recovery flip failed",
				zap.String("workspaceID", workspaceID),
				zap.Int64("consolidationID", record.ID),
				zap.Int64s("sourceIDs", unflipped),
				zap.Error(err),
			)
			continue
		}
		report.Repaired += int(n)
	}

	return report, nil
}
