package speechmine

import (
	"math"
	"slices"
	"strings"
)

// DefaultTokenFloor is the minimum character similarity for two tokens to be
// aligned by the token component of HybridScorer.
const DefaultTokenFloor = 0.6

// Scorer maps query tokens and span tokens to a similarity in [0,1].
// Implementations must be deterministic and safe for concurrent use.
type Scorer interface {
	Score(query, span []string) float64
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(query, span []string) float64

// Score calls f(query, span).
func (f ScorerFunc) Score(query, span []string) float64 {
	return f(query, span)
}

// HybridScorer averages TokenScorer and CharScorer.
type HybridScorer struct {
	// TokenFloor overrides DefaultTokenFloor when positive.
	TokenFloor float64
}

// Score implements Scorer.
func (h HybridScorer) Score(query, span []string) float64 {
	if len(query) == 0 || len(span) == 0 {
		return 0
	}
	if slices.Equal(query, span) {
		return 1
	}
	token := TokenScorer{Floor: h.TokenFloor}.Score(query, span)
	char := CharScorer{}.Score(query, span)
	return clamp01((token + char) / 2)
}

// TokenScorer is an order-preserving token overlap ratio, 2*LCS/(|q|+|s|).
// Tokens that are not equal still align with a partial weight equal to their
// character similarity, provided it reaches Floor.
type TokenScorer struct {
	Floor float64
}

// Score implements Scorer.
func (t TokenScorer) Score(query, span []string) float64 {
	if len(query) == 0 || len(span) == 0 {
		return 0
	}
	floor := t.Floor
	if floor <= 0 {
		floor = DefaultTokenFloor
	}
	prev := make([]float64, len(span)+1)
	cur := make([]float64, len(span)+1)
	for _, q := range query {
		for j, s := range span {
			best := math.Max(prev[j+1], cur[j])
			if sim := tokenSimilarity(q, s); sim >= floor {
				best = math.Max(best, prev[j]+sim)
			}
			cur[j+1] = best
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(span)]
	return clamp01(2 * lcs / float64(len(query)+len(span)))
}

// CharScorer is the normalized Levenshtein ratio of the space-joined tokens.
type CharScorer struct{}

// Score implements Scorer.
func (CharScorer) Score(query, span []string) float64 {
	if len(query) == 0 || len(span) == 0 {
		return 0
	}
	return charRatio([]rune(strings.Join(query, " ")), []rune(strings.Join(span, " ")))
}

func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return charRatio([]rune(a), []rune(b))
}

func charRatio(a, b []rune) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return clamp01(1 - float64(levenshtein(a, b))/float64(longest))
}

// levenshtein computes the edit distance between a and b with two DP rows.
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			cur[j] = min(prev[j], cur[j-1], prev[j-1]) + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundScore rounds a similarity to three decimals. Only an exact match may
// round to 1.
func roundScore(v float64) float64 {
	v = clamp01(v)
	r := round3(v)
	if r == 1 && v < 1 {
		return 0.999
	}
	return r
}

// round3 rounds v to three decimals.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
