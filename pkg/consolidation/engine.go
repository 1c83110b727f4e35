// Package consolidation implements the merge machinery of the Mnemos
// engine: tag-based cluster detection, explicit on-demand merges, and the
// recovery sweep that repairs interrupted merges.
//
// A merge is a terminal state transition for its sources: once a memory is
// consolidated it can never be scored, ranked, decayed, or chosen as a
// source again. The merged record and the source flips are committed in
// one storage transaction.
package consolidation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-go/pkg/embedder"
	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/storage"
	"github.com/mnemos-ai/mnemos-go/pkg/summarizer"
)

// MinClusterSize is the smallest tag cluster that qualifies for automatic
// consolidation.
const MinClusterSize = 3

// minExplicitSources is the smallest resolvable ID set an explicit merge
// accepts.
const minExplicitSources = 2

// embedTimeout bounds the detached post-merge embedding call.
const embedTimeout = 30 * time.Second

// UnresolvedSourcesError reports an explicit merge declined because fewer
// than two of the supplied IDs resolved to active memories. It names the
// specific IDs rather than failing generically.
type UnresolvedSourcesError struct {
	// Missing lists supplied IDs with no row in the workspace.
	Missing []int64

	// Ineligible lists supplied IDs whose rows are already consolidated.
	Ineligible []int64
}

// Error formats the declined-operation message with the offending IDs.
func (e *UnresolvedSourcesError) Error() string {
	return fmt.Sprintf("consolidation: fewer than %d resolvable sources (missing: %v, already consolidated: %v)",
		minExplicitSources, e.Missing, e.Ineligible)
}

// Overrides carries the caller-supplied fields of an explicit merge. Any
// zero field falls back to the merge defaults (AI/template summary,
// majority type, union tags).
type Overrides struct {
	// Content replaces the generated summary when non-empty.
	Content string

	// Type replaces the majority type when non-empty.
	Type string

	// ExtraTags are added to the union of source tags.
	ExtraTags []string
}

// Result is the outcome of one committed merge.
type Result struct {
	// Merged is the new memory record holding the merged fields.
	Merged *memory.Memory `json:"merged"`

	// Record is the consolidation audit record.
	Record *memory.Consolidation `json:"record"`
}

// Engine performs merges against one store.
//
// The summarizer and embedder collaborators are optional: without a
// summarizer every merge uses the template summary; without an embedder
// the post-merge indexing step is skipped. Engine methods are safe to
// call concurrently for different workspaces.
type Engine struct {
	store      storage.Store
	summarizer summarizer.Provider
	embedder   embedder.Provider
	node       *snowflake.Node
	logger     *zap.Logger

	// wg tracks detached embedding tasks so Wait can drain them.
	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithSummarizer wires the optional AI summarizer.
func WithSummarizer(p summarizer.Provider) Option {
	return func(e *Engine) { e.summarizer = p }
}

// WithEmbedder wires the optional embedding provider used to index merged
// records.
func WithEmbedder(p embedder.Provider) Option {
	return func(e *Engine) { e.embedder = p }
}

// WithLogger wires a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a consolidation engine over the given store.
func NewEngine(store storage.Store, node *snowflake.Node, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		node:   node,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConsolidateExplicit merges a caller-supplied set of memory IDs.
//
// IDs resolve against active (non-consolidated) rows of the workspace
// only. If fewer than two resolve, the merge is declined with an
// *UnresolvedSourcesError naming the missing and ineligible IDs.
//
// The merged record's fields follow the override-then-default rules:
// content from Overrides, else AI summary, else template; type from
// Overrides, else the most frequent source type (lexicographic
// tie-break); tags are the sorted union of source tags plus extras;
// access count is the sum of source counts; linkages carry one
// consolidated-from entry per source plus deduplicated inherited links.
//
// The insert and all source flips commit in one storage transaction.
// After commit a detached task embeds and indexes the merged record; its
// failure is logged, never surfaced.
func (e *Engine) ConsolidateExplicit(ctx context.Context, workspaceID string, ids []int64, ov *Overrides) (*Result, error) {
	sources, missing, ineligible, err := e.resolveSources(ctx, workspaceID, ids)
	if err != nil {
		return nil, err
	}
	if len(sources) < minExplicitSources {
		return nil, &UnresolvedSourcesError{Missing: missing, Ineligible: ineligible}
	}

	return e.consolidate(ctx, workspaceID, sources, ov)
}

// ConsolidateByTags scans a workspace's active memories for tag clusters
// and merges every qualifying cluster.
//
// A cluster is the set of active memories sharing one tag; it qualifies
// with MinClusterSize or more members. Tags are processed in lexicographic
// order and a memory consumed by an earlier cluster in the same run is
// skipped by later ones, so the outcome is deterministic. A failure in one
// cluster is logged and does not stop the remaining clusters.
func (e *Engine) ConsolidateByTags(ctx context.Context, workspaceID string) ([]*Result, error) {
	active, err := e.store.ListActive(ctx, workspaceID, nil)
	if err != nil {
		return nil, err
	}

	byTag := make(map[string][]*memory.Memory)
	for _, m := range active {
		for _, tag := range m.Tags {
			byTag[tag] = append(byTag[tag], m)
		}
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	consumed := make(map[int64]bool)
	var results []*Result

	for _, tag := range tags {
		var cluster []*memory.Memory
		for _, m := range byTag[tag] {
			if !consumed[m.ID] {
				cluster = append(cluster, m)
			}
		}
		if len(cluster) < MinClusterSize {
			continue
		}

		// Oldest first so the template summary reads chronologically.
		sort.SliceStable(cluster, func(i, j int) bool {
			if !cluster[i].CreatedAt.Equal(cluster[j].CreatedAt) {
				return cluster[i].CreatedAt.Before(cluster[j].CreatedAt)
			}
			return cluster[i].ID < cluster[j].ID
		})

		result, err := e.consolidate(ctx, workspaceID, cluster, nil)
		if err != nil {
			e.logger.Warn("tag cluster consolidation failed",
				zap.String("workspaceID", workspaceID),
				zap.String("tag", tag),
				zap.Int("clusterSize", len(cluster)),
				zap.Error(err),
			)
			continue
		}

		for _, m := range cluster {
			consumed[m.ID] = true
		}
		results = append(results, result)
	}

	return results, nil
}

// Wait blocks until all detached embedding tasks have finished. Call
// before shutdown to avoid losing index writes.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// resolveSources splits the supplied IDs into active sources (input
// order preserved), missing IDs, and already-consolidated IDs.
func (e *Engine) resolveSources(ctx context.Context, workspaceID string, ids []int64) ([]*memory.Memory, []int64, []int64, error) {
	seen := make(map[int64]bool, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	rows, err := e.store.GetByIDs(ctx, workspaceID, unique)
	if err != nil {
		return nil, nil, nil, err
	}

	byID := make(map[int64]*memory.Memory, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}

	var sources []*memory.Memory
	var missing, ineligible []int64
	for _, id := range unique {
		m, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case m.Consolidated:
			ineligible = append(ineligible, id)
		default:
			sources = append(sources, m)
		}
	}

	return sources, missing, ineligible, nil
}

// consolidate builds the merged record from the sources, commits the
// merge, and spawns the detached indexing task.
func (e *Engine) consolidate(ctx context.Context, workspaceID string, sources []*memory.Memory, ov *Overrides) (*Result, error) {
	if ov == nil {
		ov = &Overrides{}
	}

	now := time.Now().UTC()
	id := e.node.Generate().Int64()

	template := TemplateSummary(sources)
	summary, method := ov.Content, memory.MethodTemplate
	if summary == "" {
		// The summarizer is only consulted when no override supplies the
		// content; an overridden merge never reads as AI-produced.
		summary, method = e.summarize(ctx, sources, template)
	}

	memType := ov.Type
	if memType == "" {
		memType = majorityType(sources)
	}

	var tagSets [][]string
	for _, m := range sources {
		tagSets = append(tagSets, m.Tags)
	}
	tagSets = append(tagSets, ov.ExtraTags)

	merged := &memory.Memory{
		ID:          id,
		WorkspaceID: workspaceID,
		Content:     summary,
		Type:        memType,
		Tags:        memory.MergeTags(tagSets...),
		Linkages:    mergeLinkages(sources),
		CreatedAt:   now,
		AccessCount: sumAccessCounts(sources),
		Relevance:   1.0,
	}

	sourceIDs := make([]int64, len(sources))
	for i, m := range sources {
		sourceIDs[i] = m.ID
	}

	record := &memory.Consolidation{
		ID:              id,
		WorkspaceID:     workspaceID,
		Summary:         summary,
		SourceIDs:       sourceIDs,
		Tags:            merged.Tags,
		Type:            memType,
		Method:          method,
		TemplateSummary: template,
		CreatedAt:       now,
	}

	if err := e.store.Consolidate(ctx, merged, record, sourceIDs); err != nil {
		return nil, err
	}

	// Keep the in-memory rows consistent with what was committed.
	for _, m := range sources {
		m.Consolidated = true
		into := id
		m.ConsolidatedInto = &into
	}

	e.spawnEmbed(merged)

	return &Result{Merged: merged, Record: record}, nil
}

// summarize attempts the AI summary and falls back to the template.
func (e *Engine) summarize(ctx context.Context, sources []*memory.Memory, template string) (string, string) {
	if e.summarizer == nil {
		return template, memory.MethodTemplate
	}

	summary, err := e.summarizer.Summarize(ctx, sources)
	if err != nil {
		e.logger.Warn("ai summary failed, using template",
			zap.Int("sources", len(sources)),
			zap.Error(err),
		)
		return template, memory.MethodTemplate
	}

	return summary, memory.MethodAI
}

// spawnEmbed indexes the merged record in a detached task. Failures are
// logged on the engine's logger and never reach the merge caller.
func (e *Engine) spawnEmbed(merged *memory.Memory) {
	if e.embedder == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
		defer cancel()

		vector, err := e.embedder.Embed(ctx, merged.Content)
		if err != nil {
			e.logger.Warn("post-merge embedding failed",
				zap.String("workspaceID", merged.WorkspaceID),
				zap.Int64("memoryID", merged.ID),
				zap.Error(err),
			)
			return
		}

		if err := e.store.UpsertEmbedding(ctx, merged.WorkspaceID, merged.ID, vector, time.Now().UTC()); err != nil {
			e.logger.Warn("post-merge index write failed",
				zap.String("workspaceID", merged.WorkspaceID),
				zap.Int64("memoryID", merged.ID),
				zap.Error(err),
			)
		}
	}()
}
