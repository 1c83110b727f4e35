package relevance

import (
	"sort"
	"strings"
	"time"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

// Scored pairs a memory with its keyword relevance score.
type Scored struct {
	// Memory is the scored memory.
	Memory *memory.Memory `json:"memory"`

	// Score is the relevance score (> 0; zero scores are discarded).
	Score float64 `json:"score"`
}

// TokenizeQuery splits a raw query into lowercase terms.
//
// The query is lowercased and split on whitespace; empty tokens are
// dropped. An all-whitespace query yields nil.
func TokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// ScoreAndRankMemories scores a candidate set against a query and returns
// the ranked results.
//
// The method:
//  1. Tokenizes the query (lowercase, whitespace split)
//  2. Scores every active memory via ScoreMemory, discarding zero scores
//     and consolidated records
//  3. Sorts descending by score, ties broken by CreatedAt descending
//     (newest first)
//  4. Truncates to limit (limit <= 0 means no truncation)
//
// The input slice is not modified. Scoring is pure; callers may invoke
// this concurrently across requests.
func (s *Scorer) ScoreAndRankMemories(memories []*memory.Memory, query string, now time.Time, limit int) []Scored {
	terms := TokenizeQuery(query)

	results := make([]Scored, 0, len(memories))
	for _, m := range memories {
		if m == nil || m.Consolidated {
			continue
		}
		score := s.ScoreMemory(m, terms, now)
		if score <= 0 {
			continue
		}
		results = append(results, Scored{Memory: m, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results
}
