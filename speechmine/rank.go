package speechmine

import (
	"cmp"
	"slices"
)

// rankSpans keeps spans scoring within [opts.SimilarityMin, opts.SimilarityMax],
// orders them by score descending then earliest start time, and keeps the first TopK.
func rankSpans(spans []Span, words []Word, opts Options) []Span {
	hits := filterSpans(spans, opts.SimilarityMin, opts.SimilarityMax)
	slices.SortFunc(hits, func(a, b Span) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(words[a.Start].Start, words[b.Start].Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	return limitSpans(hits, opts.TopK)
}

func filterSpans(spans []Span, minScore, maxScore float64) []Span {
	out := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Score >= minScore && s.Score <= maxScore {
			out = append(out, s)
		}
	}
	return out
}

func limitSpans(spans []Span, k int) []Span {
	if k < 0 || len(spans) <= k {
		return spans
	}
	return spans[:k]
}
