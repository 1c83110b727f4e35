package consolidation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mnemos-ai/mnemos-go/pkg/memory"
)

// TemplateSummary builds the deterministic fallback summary for a merge.
//
// The summary names every source identifier and reproduces each source's
// type and content in source order, so the same inputs always produce the
// same text. It is always computed, even when an AI summary is used, and
// kept on the consolidation record as an audit trail.
func TemplateSummary(sources []*memory.Memory) string {
	ids := make([]string, len(sources))
	for i, m := range sources {
		ids[i] = strconv.FormatInt(m.ID, 10)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Consolidated %d memories (ids: %s):\n", len(sources), strings.Join(ids, ", "))
	for _, m := range sources {
		fmt.Fprintf(&sb, "- [%s] %s\n", m.Type, strings.TrimSpace(m.Content))
	}

	return strings.TrimSpace(sb.String())
}

// majorityType returns the most frequent type among the sources.
//
// Ties are broken lexicographically on the type name, so the result is
// deterministic regardless of source order. An empty source set yields
// memory.TypeConsolidated.
func majorityType(sources []*memory.Memory) string {
	counts := make(map[string]int, len(sources))
	for _, m := range sources {
		counts[m.Type]++
	}
	if len(counts) == 0 {
		return memory.TypeConsolidated
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	best := types[0]
	for _, t := range types[1:] {
		if counts[t] > counts[best] {
			best = t
		}
	}
	return best
}

// mergeLinkages builds the merged record's linkage list: one
// consolidated-from linkage per source, followed by every linkage
// inherited from the sources. Duplicates, keyed by (kind, ref, label),
// are dropped, first occurrence wins.
func mergeLinkages(sources []*memory.Memory) []memory.Linkage {
	links := make([]memory.Linkage, 0, len(sources))
	for _, m := range sources {
		links = append(links, memory.Linkage{
			Kind:  memory.LinkMemory,
			Ref:   strconv.FormatInt(m.ID, 10),
			Label: memory.LabelConsolidatedFrom,
		})
	}
	for _, m := range sources {
		links = append(links, m.Linkages...)
	}
	return memory.DedupeLinkages(links)
}

// sumAccessCounts totals the sources' access counts for the merged record.
func sumAccessCounts(sources []*memory.Memory) int {
	total := 0
	for _, m := range sources {
		if m.AccessCount > 0 {
			total += m.AccessCount
		}
	}
	return total
}
