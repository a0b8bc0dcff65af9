package speechmine

import (
	"iter"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText performs Unicode normalization, lower-casing and trims whitespace.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	// Control characters become separators so they never glue two words together.
	normed = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, normed)
	normed = cases.Lower(language.Und).String(normed)
	return strings.TrimSpace(normed)
}

// Tokens yields the normalized tokens of s. The sequence is lazy and can be
// ranged over any number of times.
func Tokens(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for field := range strings.FieldsSeq(NormalizeText(s)) {
			tok := strings.TrimFunc(field, isEdgeRune)
			if tok == "" {
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// Tokenize collects Tokens(s) into a slice.
func Tokenize(s string) []string {
	return slices.Collect(Tokens(s))
}

func isEdgeRune(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
