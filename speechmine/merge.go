package speechmine

import (
	"cmp"
	"slices"
)

// suppressOverlaps is a greedy non-maximum suppression over scored spans. Spans
// are visited by score descending, then shorter span, then lower start index,
// and a span is kept only if it does not duplicate an already kept one.
// The result is in visiting order.
func suppressOverlaps(spans []Span) []Span {
	if len(spans) <= 1 {
		return slices.Clone(spans)
	}
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, compareCandidates)

	longest := 0
	for _, s := range sorted {
		longest = max(longest, s.Len())
	}

	// Two kept spans never share a start index (that would be a full overlap of
	// the shorter one), so kept spans are keyed by start.
	keptByStart := make(map[int]Span)
	kept := make([]Span, 0, len(sorted)/2+1)
	for _, cand := range sorted {
		duplicate := false
		for start := max(0, cand.Start-longest+1); start <= cand.End; start++ {
			other, ok := keptByStart[start]
			if ok && isDuplicate(cand, other) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		keptByStart[cand.Start] = cand
		kept = append(kept, cand)
	}
	return kept
}

func compareCandidates(a, b Span) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Len(), b.Len()); c != 0 {
		return c
	}
	return cmp.Compare(a.Start, b.Start)
}

// isDuplicate reports whether a and b overlap by more than half of the shorter span.
func isDuplicate(a, b Span) bool {
	overlap := min(a.End, b.End) - max(a.Start, b.Start) + 1
	if overlap <= 0 {
		return false
	}
	return 2*overlap > min(a.Len(), b.Len())
}
