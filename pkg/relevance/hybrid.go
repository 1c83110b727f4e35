package relevance

import (
	"sort"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

const (
	// DefaultHybridAlpha is the default keyword weight in hybrid fusion.
	DefaultHybridAlpha = 0.5

	// DefaultHybridLimit is the default result cap for hybrid fusion.
	DefaultHybridLimit = 10
)

// VectorHit is one match from the external vector-similarity index.
type VectorHit struct {
	// ID is the matched memory's ID.
	ID int64 `json:"id"`

	// Score is the similarity score reported by the index.
	Score float64 `json:"score"`
}

// HybridResult is one fused entry from HybridRank.
//
// A vector-only hit carries a nil Memory (the caller resolves it from
// storage) and a zero KeywordScore; a keyword-only hit carries a zero
// VectorScore.
type HybridResult struct {
	// MemoryID identifies the memory. Unique within one result list.
	MemoryID int64 `json:"memory_id"`

	// Memory is the memory row, nil for vector-only hits.
	Memory *memory.Memory `json:"memory,omitempty"`

	// KeywordScore is the max-normalized keyword score in [0,1].
	KeywordScore float64 `json:"keyword_score"`

	// VectorScore is the max-normalized vector score in [0,1].
	VectorScore float64 `json:"vector_score"`

	// Score is alpha*KeywordScore + (1-alpha)*VectorScore.
	Score float64 `json:"score"`
}

// HybridRank fuses a keyword result set with a vector-similarity result
// set into one ranked list.
//
// Each side is normalized independently to [0,1] by dividing by that
// side's maximum score; an empty or all-zero side normalizes to zeros.
// Entries are merged by memory ID, the fused score is
// alpha*keyword + (1-alpha)*vector, and the list is sorted descending by
// fused score with ties broken by VectorScore descending (semantic
// matches win ties). Entries whose fused score is zero are dropped, so
// alpha=1 reproduces the keyword-only ordering restricted to keyword-side
// IDs, and alpha=0 reproduces the vector-only ordering.
//
// alpha outside [0,1] is clamped; limit <= 0 falls back to
// DefaultHybridLimit. The output contains no duplicate memory IDs.
func HybridRank(keywordResults []Scored, vectorResults []VectorHit, alpha float64, limit int) []HybridResult {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	if limit <= 0 {
		limit = DefaultHybridLimit
	}

	keywordMax := 0.0
	for _, r := range keywordResults {
		if r.Score > keywordMax {
			keywordMax = r.Score
		}
	}
	vectorMax := 0.0
	for _, h := range vectorResults {
		if h.Score > vectorMax {
			vectorMax = h.Score
		}
	}

	// Merge by memory ID; keyword side first so its rows carry the memory.
	entries := make(map[int64]*HybridResult, len(keywordResults)+len(vectorResults))
	var order []int64

	for _, r := range keywordResults {
		if r.Memory == nil {
			continue
		}
		id := r.Memory.ID
		if _, ok := entries[id]; ok {
			continue
		}
		score := 0.0
		if keywordMax > 0 {
			score = r.Score / keywordMax
		}
		entries[id] = &HybridResult{
			MemoryID:     id,
			Memory:       r.Memory,
			KeywordScore: score,
		}
		order = append(order, id)
	}

	for _, h := range vectorResults {
		score := 0.0
		if vectorMax > 0 {
			score = h.Score / vectorMax
		}
		if entry, ok := entries[h.ID]; ok {
			if score > entry.VectorScore {
				entry.VectorScore = score
			}
			continue
		}
		entries[h.ID] = &HybridResult{
			MemoryID:    h.ID,
			VectorScore: score,
		}
		order = append(order, h.ID)
	}

	results := make([]HybridResult, 0, len(order))
	for _, id := range order {
		entry := entries[id]
		entry.Score = alpha*entry.KeywordScore + (1-alpha)*entry.VectorScore
		if entry.Score <= 0 {
			continue
		}
		results = append(results, *entry)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].VectorScore > results[j].VectorScore
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results
}
