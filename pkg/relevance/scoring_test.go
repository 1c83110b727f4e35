package relevance_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
	"github.com/mnemos-ai/mnemos-go/pkg/relevance"
)

func TestKeywordGateShortCircuits(t *testing.T) {
	scorer := relevance.NewScorer()
	now := time.Now()

	m := &memory.Memory{
		Content:        "deployed the billing service",
		Tags:           []string{"billing"},
		CreatedAt:      now.Add(-time.Hour),
		AccessCount:    100,
		LastAccessedAt: &now,
	}

	// No term matches: the score is exactly zero no matter how strong the
	// other factors are.
	assert.Zero(t, scorer.ScoreMemory(m, []string{"kubernetes"}, now))
}

func TestKeywordFraction(t *testing.T) {
	scorer := relevance.NewScorer()
	now := time.Now()

	m := &memory.Memory{
		Content:   "the cat sat on the mat",
		Tags:      []string{"pet"},
		CreatedAt: now,
	}

	// Both factors besides keyword are neutral at age zero, so the score
	// equals the hit fraction.
	assert.InDelta(t, 1.0, scorer.ScoreMemory(m, []string{"cat"}, now), 1e-9)
	assert.InDelta(t, 0.5, scorer.ScoreMemory(m, []string{"cat", "dog"}, now), 1e-9)

	// Tags participate in the haystack.
	assert.InDelta(t, 1.0, scorer.ScoreMemory(m, []string{"pet"}, now), 1e-9)

	// Matching is case-insensitive substring.
	assert.InDelta(t, 1.0, scorer.ScoreMemory(m, []string{"CAT"}, now), 1e-9)
	assert.InDelta(t, 1.0, scorer.ScoreMemory(m, []string{"ca"}, now), 1e-9)
}

func TestScoreMemoryTenDaysOld(t *testing.T) {
	scorer := relevance.NewScorer()
	now := time.Now()

	m := &memory.Memory{
		Content:   "the cat sat on the mat",
		Tags:      []string{"pet"},
		CreatedAt: now.Add(-240 * time.Hour),
	}

	want := math.Pow(0.5, 240.0/168.0)
	assert.InDelta(t, want, scorer.ScoreMemory(m, []string{"cat"}, now), 1e-9)
	assert.InDelta(t, 0.3715, want, 0.001)
}

func TestEmptyTermsDecayPath(t *testing.T) {
	scorer := relevance.NewScorer()
	now := time.Now()

	m := &memory.Memory{
		Content:     "anything at all",
		CreatedAt:   now.Add(-168 * time.Hour),
		AccessCount: 3,
	}

	// Keyword factor is skipped entirely; no gate applies.
	want := 0.5 * relevance.AccessBoost(3)
	assert.InDelta(t, want, scorer.ScoreMemory(m, nil, now), 1e-9)
	assert.InDelta(t, want, scorer.ScoreMemory(m, []string{}, now), 1e-9)
}

func TestRecency(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name      string
		createdAt time.Time
		want      float64
	}{
		{"zero time is neutral", time.Time{}, 1.0},
		{"future is neutral", now.Add(time.Hour), 1.0},
		{"age zero", now, 1.0},
		{"one week is one half-life", now.Add(-168 * time.Hour), 0.5},
		{"two weeks is two half-lives", now.Add(-336 * time.Hour), 0.25},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, relevance.Recency(tc.createdAt, now), 1e-9)
		})
	}
}

func TestAccessBoost(t *testing.T) {
	assert.InDelta(t, 1.0, relevance.AccessBoost(0), 1e-9)
	assert.InDelta(t, 1.0, relevance.AccessBoost(-5), 1e-9, "negative counts are treated as zero")
	assert.InDelta(t, 1.3, relevance.AccessBoost(1), 1e-9)

	// Strictly increasing until the cap.
	prev := 0.0
	for count := 0; count <= 10; count++ {
		boost := relevance.AccessBoost(count)
		assert.Greater(t, boost, prev)
		prev = boost
	}

	// 1 + log2(1+n)*0.3 crosses 2.0 near n = 10; the cap holds from there.
	assert.InDelta(t, 2.0, relevance.AccessBoost(10), 1e-6)
	assert.Equal(t, 2.0, relevance.AccessBoost(1000))
	assert.Equal(t, 2.0, relevance.AccessBoost(1<<30))
}

func TestLastAccessRecency(t *testing.T) {
	now := time.Now()

	assert.InDelta(t, 1.0, relevance.LastAccessRecency(nil, now), 1e-9)

	future := now.Add(time.Hour)
	assert.InDelta(t, 1.5, relevance.LastAccessRecency(&future, now), 1e-9, "future access clamps to the maximum boost")

	justNow := now
	assert.InDelta(t, 1.5, relevance.LastAccessRecency(&justNow, now), 1e-9)

	twoDaysAgo := now.Add(-48 * time.Hour)
	assert.InDelta(t, 1.25, relevance.LastAccessRecency(&twoDaysAgo, now), 1e-9)

	longAgo := now.Add(-1000 * time.Hour)
	boost := relevance.LastAccessRecency(&longAgo, now)
	assert.Greater(t, boost, 1.0)
	assert.Less(t, boost, 1.01)
}
