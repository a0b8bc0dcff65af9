package speechmine

import (
	"fmt"
	"slices"
)

// tokenIndex holds the normalized tokens of every transcript word in one flat
// slice. offsets[i] is the position of word i's first token, so word i owns
// tokens[offsets[i]:offsets[i+1]].
type tokenIndex struct {
	tokens  []string
	offsets []int
}

func newTokenIndex(words []Word) *tokenIndex {
	idx := &tokenIndex{
		tokens:  make([]string, 0, len(words)),
		offsets: make([]int, 1, len(words)+1),
	}
	for _, w := range words {
		idx.tokens = slices.AppendSeq(idx.tokens, Tokens(w.Text))
		idx.offsets = append(idx.offsets, len(idx.tokens))
	}
	return idx
}

// Len returns the number of indexed words.
func (idx *tokenIndex) Len() int {
	return len(idx.offsets) - 1
}

func (idx *tokenIndex) tokenCount(i int) int {
	return idx.offsets[i+1] - idx.offsets[i]
}

// spanTokens returns the tokens of words start..end inclusive. The result
// aliases the index and must not be modified.
func (idx *tokenIndex) spanTokens(start, end int) []string {
	if start < 0 || end >= idx.Len() || start > end {
		panic(fmt.Sprintf("speechmine: span [%d, %d] outside %d words", start, end, idx.Len()))
	}
	return idx.tokens[idx.offsets[start]:idx.offsets[end+1]:idx.offsets[end+1]]
}
