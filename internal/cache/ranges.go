package cache

import (
	"sort"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// AffectedLines computes the line ranges that must be re-analysed after
// edits. Each edited range grows to cover every multi-line pattern it
// overlaps, transitively, and the result is merged and sorted.
func AffectedLines(edits []types.LineRange, patterns []types.LineRange) []types.LineRange {
	if len(edits) == 0 {
		return nil
	}
	out := mergeRanges(edits)

	for changed := true; changed; {
		changed = false
		for i, r := range out {
			for _, p := range patterns {
				if r.Overlaps(p) {
					u := r.Union(p)
					if u != r {
						r = u
						changed = true
					}
				}
			}
			out[i] = r
		}
		if changed {
			out = mergeRanges(out)
		}
	}
	return out
}

// mergeRanges sorts ranges and joins overlapping or adjacent ones
func mergeRanges(ranges []types.LineRange) []types.LineRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]types.LineRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	out := []types.LineRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+1 {
			last.End = max(last.End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}
