// Package postgres provides the PostgreSQL + pgvector implementation of
// the Mnemos store.
//
// Embedding vectors live in a pgvector column and similarity search runs
// server-side with the <=> cosine distance operator, so VectorSearch does
// not pull rows into the process.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/storage"
)

// Client implements storage.Store using PostgreSQL with pgvector.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string

	// TableName is the memories table name. Defaults to "memories". The
	// consolidations table derives from it ("<table>_consolidations").
	TableName string

	// EmbeddingDims is the pgvector column dimension.
	EmbeddingDims int

	// SSLMode defaults to "disable".
	SSLMode string
}

// NewClient creates a new PostgreSQL store and initializes its tables.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}
	dimensions := cfg.EmbeddingDims
	if dimensions <= 0 {
		dimensions = 1536
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: dimensions,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) consolidationsTable() string {
	return c.tableName + "_consolidations"
}

// initTables enables pgvector and creates the memories and consolidations
// tables.
func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			workspace_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			mem_type VARCHAR(64) NOT NULL DEFAULT 'observation',
			tags TEXT,
			linkages TEXT,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			access_count BIGINT DEFAULT 0,
			last_accessed_at TIMESTAMP,
			relevance FLOAT DEFAULT 1.0,
			consolidated BOOLEAN DEFAULT FALSE,
			consolidated_into BIGINT,
			embedded_at TIMESTAMP
		)
	`, c.tableName, c.dimensions)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_ws_active ON %s(workspace_id, consolidated)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	consolidationsQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			workspace_id VARCHAR(255) NOT NULL,
			summary TEXT NOT NULL,
			source_ids TEXT NOT NULL,
			tags TEXT,
			mem_type VARCHAR(64),
			method VARCHAR(16) NOT NULL,
			template_summary TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, c.consolidationsTable())
	if _, err := c.db.ExecContext(ctx, consolidationsQuery); err != nil {
		return fmt.Errorf("initTables: create consolidations table: %w", err)
	}

	return nil
}

// memoryColumns is the canonical SELECT column list. The embedding column
// is cast to text so the scanner sees pgvector's "[...]" string form.
const memoryColumns = `id, workspace_id, content, mem_type, tags, linkages, embedding::text,
	created_at, access_count, last_accessed_at, relevance,
	consolidated, consolidated_into, embedded_at`

// Insert inserts a memory row.
func (c *Client) Insert(ctx context.Context, m *memory.Memory) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, workspace_id, content, mem_type, tags, linkages, embedding,
		 created_at, access_count, last_accessed_at, relevance,
		 consolidated, consolidated_into, embedded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query, insertArgs(m)...); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// GetByIDs returns the workspace rows with the given IDs. Missing IDs are
// absent from the result.
func (c *Client) GetByIDs(ctx context.Context, workspaceID string, ids []int64) ([]*memory.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE workspace_id = $1 AND id IN (%s)
	`, memoryColumns, c.tableName, placeholders(2, len(ids)))

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, workspaceID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetByIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectMemories(rows)
}

// ListActive returns the workspace's non-consolidated rows, newest first.
func (c *Client) ListActive(ctx context.Context, workspaceID string, opts *storage.ListOptions) ([]*memory.Memory, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	var limitArg interface{}
	if opts.Limit > 0 {
		limitArg = opts.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE workspace_id = $1 AND consolidated = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, memoryColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, workspaceID, limitArg, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectMemories(rows)
}

// ListUnembedded returns active rows without an embedding, oldest first.
func (c *Client) ListUnembedded(ctx context.Context, workspaceID string, limit int) ([]*memory.Memory, error) {
	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE workspace_id = $1 AND consolidated = FALSE AND embedded_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, memoryColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, workspaceID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("ListUnembedded: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectMemories(rows)
}

// UpdateRelevance point-updates one row's cached relevance.
func (c *Client) UpdateRelevance(ctx context.Context, workspaceID string, id int64, relevance float64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET relevance = $1 WHERE workspace_id = $2 AND id = $3
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, relevance, workspaceID, id)
	if err != nil {
		return fmt.Errorf("UpdateRelevance: %w", err)
	}
	return checkFound("UpdateRelevance", result)
}

// Touch increments access_count and stamps last_accessed_at.
func (c *Client) Touch(ctx context.Context, workspaceID string, id int64, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET access_count = access_count + 1, last_accessed_at = $1
		WHERE workspace_id = $2 AND id = $3
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, at, workspaceID, id)
	if err != nil {
		return fmt.Errorf("Touch: %w", err)
	}
	return checkFound("Touch", result)
}

// TouchAll records a retrieval for several rows in one statement.
func (c *Client) TouchAll(ctx context.Context, workspaceID string, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET access_count = access_count + 1, last_accessed_at = $1
		WHERE workspace_id = $2 AND id IN (%s)
	`, c.tableName, placeholders(3, len(ids)))

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, at, workspaceID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("TouchAll: %w", err)
	}
	return result.RowsAffected()
}

// Consolidate commits one merge in a single transaction: the merged row,
// the audit record, and every source flip. If any source was concurrently
// consolidated the transaction rolls back.
func (c *Client) Consolidate(ctx context.Context, merged *memory.Memory, record *memory.Consolidation, sourceIDs []int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Consolidate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s
		(id, workspace_id, content, mem_type, tags, linkages, embedding,
		 created_at, access_count, last_accessed_at, relevance,
		 consolidated, consolidated_into, embedded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.tableName)
	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs(merged)...); err != nil {
		return fmt.Errorf("Consolidate: insert merged: %w", err)
	}

	recordQuery := fmt.Sprintf(`
		INSERT INTO %s
		(id, workspace_id, summary, source_ids, tags, mem_type, method, template_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.consolidationsTable())
	_, err = tx.ExecContext(ctx, recordQuery,
		record.ID,
		record.WorkspaceID,
		record.Summary,
		memory.EncodeSourceIDs(record.SourceIDs),
		memory.EncodeTags(record.Tags),
		record.Type,
		record.Method,
		record.TemplateSummary,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Consolidate: insert record: %w", err)
	}

	flipQuery := fmt.Sprintf(`
		UPDATE %s SET consolidated = TRUE, consolidated_into = $1
		WHERE workspace_id = $2 AND consolidated = FALSE AND id IN (%s)
	`, c.tableName, placeholders(3, len(sourceIDs)))

	flipArgs := make([]interface{}, 0, len(sourceIDs)+2)
	flipArgs = append(flipArgs, merged.ID, merged.WorkspaceID)
	for _, id := range sourceIDs {
		flipArgs = append(flipArgs, id)
	}

	result, err := tx.ExecContext(ctx, flipQuery, flipArgs...)
	if err != nil {
		return fmt.Errorf("Consolidate: flip sources: %w", err)
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Consolidate: %w", err)
	}
	if flipped != int64(len(sourceIDs)) {
		return fmt.Errorf("Consolidate: flipped %d of %d sources, aborting", flipped, len(sourceIDs))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Consolidate: %w", err)
	}
	return nil
}

// MarkConsolidated flips rows to consolidated, skipping rows already in a
// terminal state. Returns the number of rows changed.
func (c *Client) MarkConsolidated(ctx context.Context, workspaceID string, ids []int64, into int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET consolidated = TRUE, consolidated_into = $1
		WHERE workspace_id = $2 AND consolidated = FALSE AND id IN (%s)
	`, c.tableName, placeholders(3, len(ids)))

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, into, workspaceID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("MarkConsolidated: %w", err)
	}
	return result.RowsAffected()
}

// ListConsolidations returns the workspace's consolidation records,
// oldest first.
func (c *Client) ListConsolidations(ctx context.Context, workspaceID string) ([]*memory.Consolidation, error) {
	query := fmt.Sprintf(`
		SELECT id, workspace_id, summary, source_ids, tags, mem_type, method, template_summary, created_at
		FROM %s
		WHERE workspace_id = $1
		ORDER BY created_at ASC, id ASC
	`, c.consolidationsTable())

	rows, err := c.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("ListConsolidations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*memory.Consolidation
	for rows.Next() {
		record, err := scanConsolidation(rows)
		if err != nil {
			return nil, fmt.Errorf("ListConsolidations: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpsertEmbedding stores a row's vector and stamps embedded_at.
func (c *Client) UpsertEmbedding(ctx context.Context, workspaceID string, id int64, embedding []float64, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET embedding = $1, embedded_at = $2
		WHERE workspace_id = $3 AND id = $4
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, vectorToString(embedding), at, workspaceID, id)
	if err != nil {
		return fmt.Errorf("UpsertEmbedding: %w", err)
	}
	return checkFound("UpsertEmbedding", result)
}

// VectorSearch ranks active embedded rows server-side with pgvector's <=>
// cosine distance operator and returns the top K.
func (c *Client) VectorSearch(ctx context.Context, workspaceID string, embedding []float64, topK int) ([]*storage.VectorMatch, error) {
	query := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE workspace_id = $2 AND consolidated = FALSE AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3
	`, c.tableName)

	var limitArg interface{}
	if topK > 0 {
		limitArg = topK
	}

	rows, err := c.db.QueryContext(ctx, query, vectorToString(embedding), workspaceID, limitArg)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []*storage.VectorMatch
	for rows.Next() {
		var match storage.VectorMatch
		if err := rows.Scan(&match.ID, &match.Score); err != nil {
			return nil, fmt.Errorf("VectorSearch: %w", err)
		}
		matches = append(matches, &match)
	}
	return matches, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// insertArgs builds the positional argument list shared by Insert and
// Consolidate.
func insertArgs(m *memory.Memory) []interface{} {
	var embeddingArg interface{}
	if len(m.Embedding) > 0 {
		embeddingArg = vectorToString(m.Embedding)
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	relevance := m.Relevance
	if relevance == 0 {
		relevance = 1.0
	}

	return []interface{}{
		m.ID,
		m.WorkspaceID,
		m.Content,
		m.Type,
		memory.EncodeTags(m.Tags),
		memory.EncodeLinkages(m.Linkages),
		embeddingArg,
		createdAt,
		m.AccessCount,
		nullableTime(m.LastAccessedAt),
		relevance,
		m.Consolidated,
		nullableInt64(m.ConsolidatedInto),
		nullableTime(m.EmbeddedAt),
	}
}

// collectMemories drains a result set into memory rows.
func collectMemories(rows *sql.Rows) ([]*memory.Memory, error) {
	var memories []*memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory scans one memory row.
func scanMemory(scanner rowScanner) (*memory.Memory, error) {
	var m memory.Memory
	var tagsStr, linkagesStr, embeddingStr sql.NullString
	var lastAccessedAt, embeddedAt sql.NullTime
	var consolidatedInto sql.NullInt64

	err := scanner.Scan(
		&m.ID,
		&m.WorkspaceID,
		&m.Content,
		&m.Type,
		&tagsStr,
		&linkagesStr,
		&embeddingStr,
		&m.CreatedAt,
		&m.AccessCount,
		&lastAccessedAt,
		&m.Relevance,
		&m.Consolidated,
		&consolidatedInto,
		&embeddedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Tags = memory.DecodeTags(tagsStr.String)
	m.Linkages = memory.DecodeLinkages(linkagesStr.String)

	if embeddingStr.Valid && embeddingStr.String != "" {
		// Defensive: an unparsable vector leaves Embedding nil.
		if vec, err := parseVectorString(embeddingStr.String); err == nil {
			m.Embedding = vec
		}
	}
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		m.LastAccessedAt = &t
	}
	if embeddedAt.Valid {
		t := embeddedAt.Time
		m.EmbeddedAt = &t
	}
	if consolidatedInto.Valid {
		v := consolidatedInto.Int64
		m.ConsolidatedInto = &v
	}

	return &m, nil
}

// scanConsolidation scans one consolidation record.
func scanConsolidation(scanner rowScanner) (*memory.Consolidation, error) {
	var record memory.Consolidation
	var sourceIDsStr, tagsStr sql.NullString

	err := scanner.Scan(
		&record.ID,
		&record.WorkspaceID,
		&record.Summary,
		&sourceIDsStr,
		&tagsStr,
		&record.Type,
		&record.Method,
		&record.TemplateSummary,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.SourceIDs = memory.DecodeSourceIDs(sourceIDsStr.String)
	record.Tags = memory.DecodeTags(tagsStr.String)
	return &record, nil
}
