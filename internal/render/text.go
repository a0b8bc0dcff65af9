package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

const previewRunes = 80

// FormatTimestamp renders seconds as MM:SS.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatRange renders [MM:SS - MM:SS].
func FormatRange(start, end float64) string {
	return fmt.Sprintf("[%s - %s]", FormatTimestamp(start), FormatTimestamp(end))
}

// WriteResults prints a human-readable listing of a search response.
func WriteResults(w io.Writer, resp *speechmine.Response) error {
	p := &printer{w: w}
	p.printf("Query: %q\n", resp.Query)
	p.printf("Range: %.2f - %.2f, top %d, %s output\n",
		resp.Parameters.SimilarityMin, resp.Parameters.SimilarityMax, resp.Parameters.TopK, resp.Parameters.OutputType)
	p.printf("Transcript: %d words in %d utterances\n", resp.TranscriptInfo.TotalWords, resp.TranscriptInfo.TotalUtterances)
	if resp.TotalMatches == 0 {
		p.printf("\nNo matches found within the requested similarity range.\n")
		return p.err
	}
	p.printf("\n%d matches\n", resp.TotalMatches)
	for i, r := range resp.Results {
		m := r.Common()
		win := r.Window()
		p.printf("\n%d. %s %s (score %.3f)\n", i+1, FormatRange(win.Start, win.End), m.Speaker, m.SimilarityScore)
		p.printf("   matched: %s\n", m.MatchedText)
		if u, ok := r.(speechmine.UtteranceResult); ok {
			p.printf("   utterance #%d: %s\n", u.UtteranceNumber, truncate(m.FullSegmentText, previewRunes))
		} else {
			p.printf("   context: %s\n", truncate(m.FullSegmentText, previewRunes))
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	p.printf("%s\n", s)
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}
