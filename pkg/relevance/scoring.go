// Package relevance implements the scoring, ranking, fusion, and decay
// machinery of the Mnemos engine.
//
// Scoring combines four signals:
//   - Keyword match: fraction of query terms found in content or tags
//   - Recency: exponential decay from creation time (7-day half-life)
//   - Access boost: logarithmic boost from access frequency, capped at 2.0
//   - Last-access recency: short-lived boost after a retrieval (2-day scale)
//
// All scoring functions are pure and side-effect-free; they are safe to
// invoke concurrently across workspaces and requests without locking.
package relevance

import (
	"math"
	"strings"
	"time"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

const (
	// recencyHalfLifeHours is the creation-age half-life: a memory's
	// recency factor halves every 7 days.
	recencyHalfLifeHours = 168.0

	// accessBoostFactor scales the logarithmic access-count boost.
	accessBoostFactor = 0.3

	// accessBoostCap is the asymptotic upper bound of the access boost.
	accessBoostCap = 2.0

	// lastAccessHalfLifeHours is the half-life of the post-retrieval
	// boost: it decays from 1.5 toward 1.0 over roughly two days.
	lastAccessHalfLifeHours = 48.0
)

// Scorer computes relevance scores for memories.
//
// The zero value is not usable; construct with NewScorer.
//
// Example:
//
//	scorer := relevance.NewScorer()
//	score := scorer.ScoreMemory(mem, []string{"cat"}, time.Now())
type Scorer struct {
	// now is the clock used when a caller passes a zero reference time.
	now func() time.Time
}

// NewScorer creates a Scorer using the system clock.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// ScoreMemory scores one memory against a set of query terms at a
// reference time.
//
// With non-empty queryTerms the score is
//
//	keyword * recency * accessBoost * lastAccessRecency
//
// where keyword is the fraction of terms found as substrings in the
// lowercased content and tags. A keyword factor of zero short-circuits:
// the memory scores 0 before any other factor is computed.
//
// With empty queryTerms the keyword factor is skipped entirely and the
// score is recency * accessBoost * lastAccessRecency. This is the form
// the decay job uses to refresh cached relevance.
//
// The score is always >= 0. Missing timestamps and absent access counts
// resolve to neutral defaults; scoring never fails.
func (s *Scorer) ScoreMemory(m *memory.Memory, queryTerms []string, now time.Time) float64 {
	if now.IsZero() {
		now = s.now()
	}

	if len(queryTerms) > 0 {
		keyword := keywordScore(m, queryTerms)
		if keyword == 0 {
			return 0
		}
		return keyword * Recency(m.CreatedAt, now) * AccessBoost(m.AccessCount) * LastAccessRecency(m.LastAccessedAt, now)
	}

	return Recency(m.CreatedAt, now) * AccessBoost(m.AccessCount) * LastAccessRecency(m.LastAccessedAt, now)
}

// keywordScore returns the fraction of query terms found as substrings in
// the memory's lowercased content and tags.
func keywordScore(m *memory.Memory, queryTerms []string) float64 {
	haystack := strings.ToLower(m.Content) + " " + strings.ToLower(strings.Join(m.Tags, " "))

	hits := 0
	for _, term := range queryTerms {
		if term == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(term)) {
			hits++
		}
	}

	return float64(hits) / float64(len(queryTerms))
}

// Recency returns the creation-age decay factor.
//
// A missing CreatedAt, or one in the future relative to now, resolves to
// the neutral 1.0. Otherwise the factor is 0.5^(ageHours/168): 1.0 at age
// zero, 0.5 at one week, strictly decreasing in age.
func Recency(createdAt time.Time, now time.Time) float64 {
	if createdAt.IsZero() || createdAt.After(now) {
		return 1.0
	}

	ageHours := now.Sub(createdAt).Hours()
	return math.Pow(0.5, ageHours/recencyHalfLifeHours)
}

// AccessBoost returns the access-frequency boost.
//
// The boost is min(2.0, 1 + log2(1+count)*0.3): 1.0 for an untouched
// memory, strictly increasing in count, asymptotically capped at 2.0.
// Negative counts (absent data) are treated as zero.
func AccessBoost(accessCount int) float64 {
	if accessCount < 0 {
		accessCount = 0
	}

	boost := 1.0 + math.Log2(1.0+float64(accessCount))*accessBoostFactor
	return math.Min(accessBoostCap, boost)
}

// LastAccessRecency returns the post-retrieval boost.
//
// A nil LastAccessedAt resolves to the neutral 1.0. A last access in the
// future relative to now clamps to 1.5 (defensive; clocks drift). Otherwise
// the boost is 1 + 0.5*0.5^(hoursSince/48), decaying from 1.5 just after a
// retrieval toward 1.0 over roughly two days.
func LastAccessRecency(lastAccessedAt *time.Time, now time.Time) float64 {
	if lastAccessedAt == nil {
		return 1.0
	}
	if lastAccessedAt.After(now) {
		return 1.5
	}

	hoursSince := now.Sub(*lastAccessedAt).Hours()
	return 1.0 + 0.5*math.Pow(0.5, hoursSince/lastAccessHalfLifeHours)
}
