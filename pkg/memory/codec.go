package memory

import (
	"encoding/json"
	"sort"
	"strings"
)

// The tags and linkages columns persist as JSON text, matching the on-disk
// encoding the engine inherited. Decoding is defensive: storage rows written
// by older agents occasionally carry malformed blobs, and a broken tag set
// must never fail a scoring or retrieval path.

// DecodeTags parses a stored tag blob into a normalized tag set.
//
// Unparsable input yields an empty set, never an error. The result is
// lowercase, sorted, and deduplicated.
func DecodeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}

	return NormalizeTags(tags)
}

// EncodeTags serializes a tag set to its stored JSON form, normalizing
// first so equal sets always encode identically.
func EncodeTags(tags []string) string {
	normalized := NormalizeTags(tags)
	if len(normalized) == 0 {
		return "[]"
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// NormalizeTags lowercases, trims, deduplicates, and sorts a tag set.
// Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// MergeTags returns the sorted union of several tag sets.
func MergeTags(sets ...[]string) []string {
	var all []string
	for _, set := range sets {
		all = append(all, set...)
	}
	return NormalizeTags(all)
}

// DecodeLinkages parses a stored linkage blob.
//
// Unparsable input yields an empty list, never an error. Duplicate
// (Kind, Ref, Label) entries are dropped, first occurrence wins.
func DecodeLinkages(raw string) []Linkage {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var links []Linkage
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return nil
	}

	return DedupeLinkages(links)
}

// EncodeLinkages serializes linkages to their stored JSON form.
func EncodeLinkages(links []Linkage) string {
	deduped := DedupeLinkages(links)
	if len(deduped) == 0 {
		return "[]"
	}

	data, err := json.Marshal(deduped)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DedupeLinkages drops duplicate linkages, keeping the first occurrence.
// The duplicate key is the (Kind, Ref, Label) triple.
func DedupeLinkages(links []Linkage) []Linkage {
	seen := make(map[Linkage]bool, len(links))
	var out []Linkage
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// DecodeSourceIDs parses a stored consolidation source-ID blob.
// Unparsable input yields an empty list.
func DecodeSourceIDs(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

// EncodeSourceIDs serializes consolidation source IDs, preserving order.
func EncodeSourceIDs(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}
