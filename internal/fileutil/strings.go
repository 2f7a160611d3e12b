package fileutil

import (
	"cmp"
	"slices"
)

// DedupeStrings keeps the first occurrence of each item.
func DedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func SortedKeys[K cmp.Ordered, V any](values map[K]V) []K {
	out := make([]K, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}
