package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-go/pkg/consolidation"
	"github.com/mnemos-ai/mnemos-go/pkg/embedder"
	openaiEmbedder "github.com/mnemos-ai/mnemos-go/pkg/embedder/openai"
	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/relevance"
	"github.com/mnemos-ai/mnemos-go/pkg/storage"
	mysqlStore "github.com/mnemos-ai/mnemos-go/pkg/storage/mysql"
	postgresStore "github.com/mnemos-ai/mnemos-go/pkg/storage/postgres"
	sqliteStore "github.com/mnemos-ai/mnemos-go/pkg/storage/sqlite"
	"github.com/mnemos-ai/mnemos-go/pkg/summarizer"
	openaiSummarizer "github.com/mnemos-ai/mnemos-go/pkg/summarizer/openai"
)

// backfillBatchSize is the page size of the embedding backfill loop.
const backfillBatchSize = 50

// Client is the main Mnemos client.
//
// It wires a storage backend, an optional embedder, and an optional
// summarizer into one facade exposing scoring, retrieval, decay, and
// consolidation. The client is thread-safe.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	results, _ := client.Retrieve(ctx, "ws_1", "database migration",
//	    core.WithLimit(5),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// store is the storage backend for memory persistence.
	store storage.Store

	// embedder is the embedding provider (nil if not configured).
	embedder embedder.Provider

	// summarizer is the summarizer provider (nil if not configured).
	summarizer summarizer.Provider

	// scorer computes relevance scores.
	scorer *relevance.Scorer

	// decay recomputes cached relevance in batches.
	decay *relevance.DecayJob

	// engine merges memories into consolidated summaries.
	engine *consolidation.Engine

	// node generates unique IDs for memories.
	node *snowflake.Node

	// logger receives batch and background diagnostics.
	logger *zap.Logger

	// mu protects concurrent access to the client.
	mu sync.RWMutex
}

// NewClient creates a new Mnemos client.
//
// The client is initialized with:
//   - A storage backend (SQLite, PostgreSQL, or MySQL)
//   - An embedding provider, if the config carries an embedding API key
//   - A summarizer provider, if the config carries a summarizer API key
//
// Parameters:
//   - cfg: Configuration containing storage and provider settings
//   - opts: Optional client settings (e.g., WithClientLogger)
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewEngineError("NewClient", err)
	}

	client := &Client{
		config: cfg,
		store:  store,
		scorer: relevance.NewScorer(),
		node:   node,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if cfg.Embedder.APIKey != "" {
		client.embedder, err = openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.Embedder.APIKey,
			Model:      cfg.Embedder.Model,
			BaseURL:    cfg.Embedder.BaseURL,
			Dimensions: cfg.Embedder.Dimensions,
		})
		if err != nil {
			return nil, err
		}
	}
	if cfg.Summarizer.APIKey != "" {
		client.summarizer, err = openaiSummarizer.NewClient(&openaiSummarizer.Config{
			APIKey:  cfg.Summarizer.APIKey,
			Model:   cfg.Summarizer.Model,
			BaseURL: cfg.Summarizer.BaseURL,
		})
		if err != nil {
			return nil, err
		}
	}

	client.decay = relevance.NewDecayJob(store, client.scorer, client.logger)

	engineOpts := []consolidation.Option{
		consolidation.WithLogger(client.logger),
	}
	if client.summarizer != nil {
		engineOpts = append(engineOpts, consolidation.WithSummarizer(client.summarizer))
	}
	if client.embedder != nil {
		engineOpts = append(engineOpts, consolidation.WithEmbedder(client.embedder))
	}
	client.engine = consolidation.NewEngine(store, node, engineOpts...)

	return client, nil
}

// initStore builds the storage backend named by the config.
func initStore(cfg StoreConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:    configString(cfg.Config, "db_path", "./mnemos.db"),
			TableName: configString(cfg.Config, "table_name", "memories"),
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:          configString(cfg.Config, "host", "localhost"),
			Port:          configInt(cfg.Config, "port", 5432),
			User:          configString(cfg.Config, "user", "postgres"),
			Password:      configString(cfg.Config, "password", ""),
			DBName:        configString(cfg.Config, "db_name", "mnemos"),
			TableName:     configString(cfg.Config, "table_name", "memories"),
			EmbeddingDims: configInt(cfg.Config, "embedding_dims", 1536),
			SSLMode:       configString(cfg.Config, "ssl_mode", "disable"),
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:      configString(cfg.Config, "host", "127.0.0.1"),
			Port:      configInt(cfg.Config, "port", 3306),
			User:      configString(cfg.Config, "user", "root"),
			Password:  configString(cfg.Config, "password", ""),
			DBName:    configString(cfg.Config, "db_name", "mnemos"),
			TableName: configString(cfg.Config, "table_name", "memories"),
		})
	default:
		return nil, NewEngineError("initStore", fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// Remember stores a new memory in the workspace.
//
// The memory receives a snowflake ID and a relevance of 1.0. If an
// embedder is configured the content is embedded before insert; an
// embedding failure is logged and the row is inserted unembedded, to be
// picked up later by BackfillEmbeddings.
//
// Parameters:
//   - ctx: Context for cancellation
//   - workspaceID: Workspace to store the memory in
//   - content: Memory content (text string)
//   - opts: Optional parameters (type, tags, linkages)
//
// Returns the created Memory, or an error if the insert fails.
func (c *Client) Remember(ctx context.Context, workspaceID, content string, opts ...RememberOption) (*memory.Memory, error) {
	if workspaceID == "" || content == "" {
		return nil, NewEngineError("Remember", ErrInvalidInput)
	}

	ro := applyRememberOptions(opts)
	now := time.Now().UTC()

	m := &memory.Memory{
		ID:          c.node.Generate().Int64(),
		WorkspaceID: workspaceID,
		Content:     content,
		Type:        ro.memType,
		Tags:        memory.NormalizeTags(ro.tags),
		Linkages:    memory.DedupeLinkages(ro.linkages),
		CreatedAt:   now,
		Relevance:   1.0,
	}

	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, content)
		if err != nil {
			c.logger.Warn("embedding failed, inserting unembedded",
				zap.String("workspace_id", workspaceID),
				zap.Int64("memory_id", m.ID),
				zap.Error(err))
		} else {
			m.Embedding = vec
			embeddedAt := now
			m.EmbeddedAt = &embeddedAt
		}
	}

	if err := c.store.Insert(ctx, m); err != nil {
		return nil, NewEngineError("Remember", err)
	}
	return m, nil
}

// ScoreMemory computes the relevance score of one memory against a set of
// query terms, as of now.
func (c *Client) ScoreMemory(m *memory.Memory, queryTerms []string) float64 {
	return c.scorer.ScoreMemory(m, queryTerms, time.Now().UTC())
}

// Retrieve searches the workspace's active memories.
//
// Keyword scoring always runs. If an embedder is configured and keyword-only
// mode is not requested, the query is embedded and the keyword ranking is
// fused with a vector search using hybrid ranking. Returned rows are
// touched (access count incremented, last access stamped) best-effort.
//
// Parameters:
//   - ctx: Context for cancellation
//   - workspaceID: Workspace to search
//   - query: Free-text query
//   - opts: Optional parameters (limit, alpha, keyword-only)
//
// Returns the ranked results, best first.
func (c *Client) Retrieve(ctx context.Context, workspaceID, query string, opts ...RetrieveOption) ([]relevance.HybridResult, error) {
	if workspaceID == "" {
		return nil, NewEngineError("Retrieve", ErrInvalidInput)
	}

	ro := c.applyRetrieveOptions(opts)
	now := time.Now().UTC()

	memories, err := c.store.ListActive(ctx, workspaceID, nil)
	if err != nil {
		return nil, NewEngineError("Retrieve", err)
	}

	keywordResults := c.scorer.ScoreAndRankMemories(memories, query, now, 0)

	var results []relevance.HybridResult
	if c.embedder != nil && !ro.keywordOnly {
		vectorHits, err := c.vectorHits(ctx, workspaceID, query, ro.limit)
		if err != nil {
			c.logger.Warn("vector search failed, falling back to keyword ranking",
				zap.String("workspace_id", workspaceID),
				zap.Error(err))
		}
		results = relevance.HybridRank(keywordResults, vectorHits, ro.alpha, ro.limit)
		c.resolveMissing(ctx, workspaceID, results, memories)
	} else {
		results = relevance.HybridRank(keywordResults, nil, 1.0, ro.limit)
	}

	if len(results) > 0 {
		ids := make([]int64, len(results))
		for i := range results {
			ids[i] = results[i].MemoryID
		}
		if _, err := c.store.TouchAll(ctx, workspaceID, ids, now); err != nil {
			c.logger.Warn("access touch failed",
				zap.String("workspace_id", workspaceID),
				zap.Int64s("memory_ids", ids),
				zap.Error(err))
		}
	}

	return results, nil
}

// vectorHits embeds the query and runs the store's vector search.
func (c *Client) vectorHits(ctx context.Context, workspaceID, query string, limit int) ([]relevance.VectorHit, error) {
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := c.store.VectorSearch(ctx, workspaceID, vec, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]relevance.VectorHit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, relevance.VectorHit{ID: match.ID, Score: match.Score})
	}
	return hits, nil
}

// resolveMissing fills in memory rows for vector-only hits, first from the
// already-listed active set, then from the store.
func (c *Client) resolveMissing(ctx context.Context, workspaceID string, results []relevance.HybridResult, listed []*memory.Memory) {
	byID := make(map[int64]*memory.Memory, len(listed))
	for _, m := range listed {
		byID[m.ID] = m
	}

	var missing []int64
	for i := range results {
		if results[i].Memory != nil {
			continue
		}
		if m, ok := byID[results[i].MemoryID]; ok {
			results[i].Memory = m
			continue
		}
		missing = append(missing, results[i].MemoryID)
	}
	if len(missing) == 0 {
		return
	}

	fetched, err := c.store.GetByIDs(ctx, workspaceID, missing)
	if err != nil {
		c.logger.Warn("resolving vector hits failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err))
		return
	}
	for _, m := range fetched {
		byID[m.ID] = m
	}
	for i := range results {
		if results[i].Memory == nil {
			results[i].Memory = byID[results[i].MemoryID]
		}
	}
}

// ApplyDecay recomputes cached relevance for the workspace's active
// memories, writing back only drifted rows.
func (c *Client) ApplyDecay(ctx context.Context, workspaceID string) (relevance.DecayResult, error) {
	result, err := c.decay.Run(ctx, workspaceID, time.Now().UTC())
	if err != nil {
		return result, NewEngineError("ApplyDecay", err)
	}
	return result, nil
}

// SweepReport is the outcome of a multi-workspace decay sweep.
type SweepReport struct {
	// Results maps workspace ID to that workspace's decay result.
	Results map[string]relevance.DecayResult

	// Errors maps workspace ID to the error that aborted its pass. A
	// workspace appears in exactly one of the two maps.
	Errors map[string]error
}

// DecaySweep runs ApplyDecay over several workspaces. A failing workspace
// is recorded in the report and does not stop the sweep.
func (c *Client) DecaySweep(ctx context.Context, workspaceIDs []string) *SweepReport {
	report := &SweepReport{
		Results: make(map[string]relevance.DecayResult),
		Errors:  make(map[string]error),
	}
	now := time.Now().UTC()

	for _, workspaceID := range workspaceIDs {
		result, err := c.decay.Run(ctx, workspaceID, now)
		if err != nil {
			c.logger.Warn("decay sweep workspace failed",
				zap.String("workspace_id", workspaceID),
				zap.Error(err))
			report.Errors[workspaceID] = err
			continue
		}
		report.Results[workspaceID] = result
	}

	return report
}

// BackfillResult is the outcome of an embedding backfill pass.
type BackfillResult struct {
	// Embedded is the number of rows successfully embedded.
	Embedded int

	// Failed is the number of rows whose embedding or write-back failed.
	Failed int
}

// BackfillEmbeddings embeds the workspace's unembedded active memories in
// batches, oldest first. Per-row failures are counted and logged, not
// propagated. The pass stops when a batch makes no progress.
func (c *Client) BackfillEmbeddings(ctx context.Context, workspaceID string) (BackfillResult, error) {
	var result BackfillResult
	if c.embedder == nil {
		return result, NewEngineError("BackfillEmbeddings", ErrNoEmbedder)
	}

	for {
		rows, err := c.store.ListUnembedded(ctx, workspaceID, backfillBatchSize)
		if err != nil {
			return result, NewEngineError("BackfillEmbeddings", err)
		}
		if len(rows) == 0 {
			return result, nil
		}

		contents := make([]string, len(rows))
		for i, m := range rows {
			contents[i] = m.Content
		}

		vectors, err := c.embedder.EmbedBatch(ctx, contents)
		if err != nil {
			c.logger.Warn("batch embedding failed",
				zap.String("workspace_id", workspaceID),
				zap.Int("batch_size", len(rows)),
				zap.Error(err))
			result.Failed += len(rows)
			return result, nil
		}

		now := time.Now().UTC()
		embedded := 0
		for i, m := range rows {
			if err := c.store.UpsertEmbedding(ctx, workspaceID, m.ID, vectors[i], now); err != nil {
				c.logger.Warn("embedding write-back failed",
					zap.String("workspace_id", workspaceID),
					zap.Int64("memory_id", m.ID),
					zap.Error(err))
				result.Failed++
				continue
			}
			embedded++
		}
		result.Embedded += embedded

		// A batch with no successful write-backs would reselect the same
		// rows forever.
		if embedded == 0 || len(rows) < backfillBatchSize {
			return result, nil
		}
	}
}

// ConsolidateByTags detects tag clusters among the workspace's active
// memories and merges each cluster of at least three.
func (c *Client) ConsolidateByTags(ctx context.Context, workspaceID string) ([]*consolidation.Result, error) {
	return c.engine.ConsolidateByTags(ctx, workspaceID)
}

// ConsolidateExplicit merges the given memories. At least two of the IDs
// must resolve to active rows; otherwise the merge is declined with an
// error naming the missing and ineligible IDs.
func (c *Client) ConsolidateExplicit(ctx context.Context, workspaceID string, ids []int64, overrides *consolidation.Overrides) (*consolidation.Result, error) {
	return c.engine.ConsolidateExplicit(ctx, workspaceID, ids, overrides)
}

// Recover scans the workspace's consolidation records and rolls forward
// any partially flipped source sets.
func (c *Client) Recover(ctx context.Context, workspaceID string) (consolidation.RecoveryReport, error) {
	return c.engine.Recover(ctx, workspaceID)
}

// Wait blocks until detached post-consolidation embedding tasks finish.
func (c *Client) Wait() {
	c.engine.Wait()
}

// Close waits for background tasks and releases all resources.
func (c *Client) Close() error {
	c.engine.Wait()

	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			c.logger.Warn("embedder close failed", zap.Error(err))
		}
	}
	if c.summarizer != nil {
		if err := c.summarizer.Close(); err != nil {
			c.logger.Warn("summarizer close failed", zap.Error(err))
		}
	}
	return c.store.Close()
}

// configString reads a string value from a provider config map.
func configString(m map[string]interface{}, key, defaultValue string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// configInt reads an integer value from a provider config map. JSON
// decoding produces float64 numbers, so both forms are accepted.
func configInt(m map[string]interface{}, key string, defaultValue int) int {
	switch v := m[key].(type) {
	case int:
		if v != 0 {
			return v
		}
	case float64:
		if v != 0 {
			return int(v)
		}
	}
	return defaultValue
}
