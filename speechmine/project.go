package speechmine

import (
	"fmt"
	"math"
)

// project turns ranked spans into results of the requested shape.
func (t *Transcript) project(spans []Span, mode OutputType) []SearchResult {
	out := make([]SearchResult, 0, len(spans))
	for _, sp := range spans {
		match, utt, window := t.describe(sp)
		switch mode {
		case OutputUtterance:
			out = append(out, UtteranceResult{
				Match:           match,
				TimeSpan:        window,
				UtteranceNumber: utt.ID,
			})
		case OutputTimestamp:
			out = append(out, TimestampResult{
				Match:      match,
				TimeWindow: window,
			})
		default:
			panic(fmt.Sprintf("speechmine: unknown output type %q", mode))
		}
	}
	return out
}

// describe builds the fields shared by both result shapes. The match is
// attributed to the utterance holding its first word.
func (t *Transcript) describe(sp Span) (Match, *Utterance, TimeRange) {
	if sp.Start < 0 || sp.End >= len(t.words) || sp.Start > sp.End {
		panic(fmt.Sprintf("speechmine: span [%d, %d] outside %d words", sp.Start, sp.End, len(t.words)))
	}
	utt := t.utteranceOf(sp.Start)
	first := utt.WordIDs[0]

	words := make([]MatchedWord, 0, sp.Len())
	end := t.words[sp.Start].End
	for i := sp.Start; i <= sp.End; i++ {
		w := t.words[i]
		end = math.Max(end, w.End)
		words = append(words, MatchedWord{
			Word:       w.Text,
			Start:      w.Start,
			End:        w.End,
			Confidence: copyFloat(w.Confidence),
		})
	}
	start := t.words[sp.Start].Start

	match := Match{
		MatchedText:       joinWordTexts(t.words, sp.Start, sp.End),
		SimilarityScore:   round3(sp.Score),
		Speaker:           utt.Speaker,
		FullSegmentText:   utt.Text,
		SegmentConfidence: copyFloat(utt.Confidence),
		MatchIndices: MatchIndices{
			Start:          sp.Start,
			End:            sp.End,
			UtteranceStart: sp.Start - first,
			UtteranceEnd:   sp.End - first,
		},
		MatchedWords: words,
	}
	window := TimeRange{
		Start:    start,
		End:      end,
		Duration: round3(end - start),
	}
	return match, utt, window
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
