package speechmine

import "iter"

// windows enumerates candidate spans whose token count lies in
// [max(1, queryTokens-tolerance), queryTokens+tolerance]. Spans never start or
// end on a word without tokens. Spans are yielded by ascending start, then
// ascending end, with a zero score.
func (idx *tokenIndex) windows(queryTokens, tolerance int) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		if queryTokens <= 0 || tolerance < 0 {
			return
		}
		lo := max(1, queryTokens-tolerance)
		hi := queryTokens + tolerance
		n := idx.Len()
		for i := 0; i < n; i++ {
			if idx.tokenCount(i) == 0 {
				continue
			}
			for j := i; j < n; j++ {
				count := idx.offsets[j+1] - idx.offsets[i]
				if count > hi {
					break
				}
				if count < lo || idx.tokenCount(j) == 0 {
					continue
				}
				if !yield(Span{Start: i, End: j}) {
					return
				}
			}
		}
	}
}
