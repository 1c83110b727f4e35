package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

func TestDecodeTags(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"empty array", "[]", nil},
		{"valid tags", `["go","database"]`, []string{"database", "go"}},
		{"mixed case and spaces", `["Go"," DATABASE "]`, []string{"database", "go"}},
		{"duplicates", `["go","go","Go"]`, []string{"go"}},
		{"malformed json", `{"not":"an array"`, nil},
		{"wrong type", `{"a":1}`, nil},
		{"number array", `[1,2,3]`, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, memory.DecodeTags(tc.raw))
		})
	}
}

func TestEncodeTagsNormalizes(t *testing.T) {
	// Equal tag sets must encode identically regardless of input order.
	a := memory.EncodeTags([]string{"Go", "database", "go"})
	b := memory.EncodeTags([]string{"database", "GO"})
	assert.Equal(t, a, b)
	assert.Equal(t, `["database","go"]`, a)

	assert.Equal(t, "[]", memory.EncodeTags(nil))
	assert.Equal(t, "[]", memory.EncodeTags([]string{"", "  "}))
}

func TestMergeTags(t *testing.T) {
	merged := memory.MergeTags(
		[]string{"go", "database"},
		[]string{"Database", "migrations"},
		nil,
	)
	assert.Equal(t, []string{"database", "go", "migrations"}, merged)
}

func TestDecodeLinkages(t *testing.T) {
	assert.Nil(t, memory.DecodeLinkages(""))
	assert.Nil(t, memory.DecodeLinkages("not json"))

	links := memory.DecodeLinkages(`[{"kind":"memory","ref":"42","label":"related"}]`)
	assert.Equal(t, []memory.Linkage{{Kind: "memory", Ref: "42", Label: "related"}}, links)
}

func TestDedupeLinkagesFirstWins(t *testing.T) {
	links := []memory.Linkage{
		{Kind: memory.LinkMemory, Ref: "1", Label: "related"},
		{Kind: memory.LinkFile, Ref: "main.go", Label: "touches"},
		{Kind: memory.LinkMemory, Ref: "1", Label: "related"},
		{Kind: memory.LinkMemory, Ref: "1", Label: "other-label"},
	}

	deduped := memory.DedupeLinkages(links)
	assert.Len(t, deduped, 3)
	assert.Equal(t, links[0], deduped[0])
	assert.Equal(t, links[1], deduped[1])
	assert.Equal(t, links[3], deduped[2])
}

func TestSourceIDsRoundTrip(t *testing.T) {
	ids := []int64{30, 10, 20}

	encoded := memory.EncodeSourceIDs(ids)
	assert.Equal(t, "[30,10,20]", encoded, "order must be preserved")
	assert.Equal(t, ids, memory.DecodeSourceIDs(encoded))

	assert.Equal(t, "[]", memory.EncodeSourceIDs(nil))
	assert.Nil(t, memory.DecodeSourceIDs("garbage"))
}

func TestMemoryActive(t *testing.T) {
	m := &memory.Memory{}
	assert.True(t, m.Active())

	m.Consolidated = true
	assert.False(t, m.Active())
}
