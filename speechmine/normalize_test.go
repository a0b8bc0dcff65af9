package speechmine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"  spaced\tout\nwords  ", []string{"spaced", "out", "words"}},
		{"don't stop", []string{"don't", "stop"}},
		{"\"quoted\" (parens) [brackets]", []string{"quoted", "parens", "brackets"}},
		{"-- ... ?!", nil},
		{"", nil},
		{"ＦＵＬＬ　ＷＩＤＴＨ", []string{"full", "width"}},
		{"state-of-the-art", []string{"state-of-the-art"}},
		{"$100", []string{"100"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Tokenize(tc.in), tc.in)
	}
}

func TestTokensRestartable(t *testing.T) {
	seq := Tokens("One two, THREE.")
	var first, second []string
	for tok := range seq {
		first = append(first, tok)
	}
	for tok := range seq {
		second = append(second, tok)
	}
	assert.Equal(t, []string{"one", "two", "three"}, first)
	assert.Equal(t, first, second)
}

func TestTokensStopsEarly(t *testing.T) {
	var got []string
	for tok := range Tokens("a b c d") {
		got = append(got, tok)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "abc def", NormalizeText("  ABC\x00def "))
	assert.Equal(t, "fi", NormalizeText("ﬁ"))
}
