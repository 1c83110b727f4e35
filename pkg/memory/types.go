// Package memory defines the shared data model for the Mnemos engine:
// workspace-scoped memory records, their linkages, and consolidation records.
//
// The package is a leaf dependency so that storage backends, the relevance
// engine, and the consolidation engine can all share one set of types.
package memory

import "time"

// Memory type constants for the open Type enum. Callers may store any
// string; these are the values the engine itself produces or recognizes.
const (
	// TypeObservation marks a memory recorded from observed agent behavior.
	TypeObservation = "observation"

	// TypeFact marks a memory holding a standalone fact.
	TypeFact = "fact"

	// TypeDecision marks a memory recording a decision and its rationale.
	TypeDecision = "decision"

	// TypeConsolidated marks a memory produced by merging other memories.
	TypeConsolidated = "consolidated"
)

// Linkage kinds.
const (
	// LinkMemory links to another memory by ID.
	LinkMemory = "memory"

	// LinkFile links to a file by path.
	LinkFile = "file"
)

// LabelConsolidatedFrom is the linkage label the consolidation engine
// attaches to each source of a merged memory.
const LabelConsolidatedFrom = "consolidated-from"

// Linkage is a typed relation from a memory to another memory or a file.
//
// Linkages are order-insignificant; two linkages are duplicates when their
// (Kind, Ref, Label) triples match.
type Linkage struct {
	// Kind is the relation target kind: LinkMemory or LinkFile.
	Kind string `json:"kind"`

	// Ref is the target: a memory ID rendered in decimal for LinkMemory,
	// a file path for LinkFile.
	Ref string `json:"ref"`

	// Label describes the relation (e.g. "consolidated-from").
	Label string `json:"label"`
}

// Memory is a single unit of agent-authored knowledge scoped to one
// workspace.
//
// Relevance is derived state: it is always reproducible from CreatedAt,
// AccessCount and LastAccessedAt via the relevance engine's scoring
// formula, and is only cached here so rows can be ordered without a query.
//
// Once Consolidated is set the record is terminal: it is excluded from
// scoring, ranking, decay, and future consolidation source sets, and
// ConsolidatedInto points at the record that superseded it.
type Memory struct {
	// ID is the unique identifier of the memory within its workspace.
	ID int64 `json:"id"`

	// WorkspaceID is the tenant isolation boundary. Memories never cross it.
	WorkspaceID string `json:"workspace_id"`

	// Content is the text body of the memory.
	Content string `json:"content"`

	// Type is the categorical tag (observation, fact, decision, ...).
	Type string `json:"type"`

	// Tags is the normalized tag set: lowercase, sorted, deduplicated.
	Tags []string `json:"tags,omitempty"`

	// Linkages are relations to other memories or files.
	Linkages []Linkage `json:"linkages,omitempty"`

	// Embedding is the vector representation for similarity search.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"-"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// AccessCount is the number of times the memory was retrieved.
	// Monotonically non-decreasing.
	AccessCount int `json:"access_count"`

	// LastAccessedAt is when the memory was last retrieved (nil if never).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Relevance is the cached decay-adjusted score. Defaults to 1.0 and is
	// recomputed by the decay job.
	Relevance float64 `json:"relevance"`

	// Consolidated reports whether the memory was merged into another
	// record. Terminal once set.
	Consolidated bool `json:"consolidated"`

	// ConsolidatedInto is the ID of the record that superseded this memory
	// (nil while active).
	ConsolidatedInto *int64 `json:"consolidated_into,omitempty"`

	// EmbeddedAt is when the memory was last successfully indexed in the
	// vector store (nil if never).
	EmbeddedAt *time.Time `json:"embedded_at,omitempty"`
}

// Active reports whether the memory participates in scoring, ranking,
// decay, and consolidation.
func (m *Memory) Active() bool {
	return !m.Consolidated
}

// Consolidation records one merge event: which sources were merged, the
// summary that replaced them, and how the summary was produced.
type Consolidation struct {
	// ID is the unique identifier of the consolidation. It equals the ID of
	// the merged memory record it produced.
	ID int64 `json:"id"`

	// WorkspaceID is the workspace the merge happened in.
	WorkspaceID string `json:"workspace_id"`

	// Summary is the content of the merged record.
	Summary string `json:"summary"`

	// SourceIDs lists the merged memories in source order.
	SourceIDs []int64 `json:"source_ids"`

	// Tags is the sorted union of all source tags.
	Tags []string `json:"tags,omitempty"`

	// Type is the merged record's categorical tag.
	Type string `json:"type"`

	// Method records how Summary was produced: MethodAI or MethodTemplate.
	Method string `json:"method"`

	// TemplateSummary is the deterministic fallback summary. It is always
	// computed and kept as an audit trail even when Method is MethodAI.
	TemplateSummary string `json:"template_summary"`

	// CreatedAt is when the merge was committed.
	CreatedAt time.Time `json:"created_at"`
}

// Consolidation methods.
const (
	// MethodAI means the summary came from the external summarizer.
	MethodAI = "ai"

	// MethodTemplate means the deterministic template summary was used.
	MethodTemplate = "template"
)
