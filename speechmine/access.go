package speechmine

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// ExportKind names an export layout.
type ExportKind string

const (
	ExportWords      ExportKind = "words"
	ExportUtterances ExportKind = "utterances"
	ExportDocument   ExportKind = "json"
)

// WordRef is a single word addressed by utterance number and index.
type WordRef struct {
	UtteranceNumber       int    `json:"utterance_number"`
	WordIndex             int    `json:"word_index"`
	Word                  Word   `json:"word_data"`
	UtteranceText         string `json:"utterance_text"`
	TotalWordsInUtterance int    `json:"total_words_in_utterance"`
}

// WordRangeResult is a run of words inside one utterance.
type WordRangeResult struct {
	UtteranceNumber int       `json:"utterance_number"`
	StartIndex      int       `json:"start_index"`
	EndIndex        int       `json:"end_index"`
	Text            string    `json:"text"`
	Words           []Word    `json:"words"`
	TimeSpan        TimeRange `json:"time_span"`
	UtteranceText   string    `json:"utterance_text"`
}

// UtteranceDetail is an utterance together with its words.
type UtteranceDetail struct {
	UtteranceNumber int      `json:"utterance_number"`
	Speaker         string   `json:"speaker"`
	Start           float64  `json:"start"`
	End             float64  `json:"end"`
	Duration        float64  `json:"duration"`
	Text            string   `json:"text"`
	Confidence      *float64 `json:"confidence,omitempty"`
	WordCount       int      `json:"word_count"`
	Words           []Word   `json:"words"`
}

// WordHit is a FindWords match.
type WordHit struct {
	UtteranceNumber int    `json:"utterance_number"`
	WordIndex       int    `json:"word_index"`
	Word            Word   `json:"word_data"`
	UtteranceText   string `json:"utterance_text"`
}

// Stats summarises a transcript. Metadata fields are flattened into the JSON
// form; Stats' own fields take precedence on name clashes.
type Stats struct {
	TotalUtterances   int      `json:"total_utterances"`
	TotalWords        int      `json:"total_words"`
	TotalSpeakers     int      `json:"total_speakers"`
	Speakers          []string `json:"speakers"`
	AverageConfidence float64  `json:"average_confidence"`
	Duration          float64  `json:"duration"`
	*Metadata
}

// LookupWord returns word index idx of utterance number utt.
func (t *Transcript) LookupWord(utt, idx int) (WordRef, error) {
	u, err := t.utteranceByNumber(utt)
	if err != nil {
		return WordRef{}, err
	}
	if idx < 0 || idx >= len(u.WordIDs) {
		return WordRef{}, fmt.Errorf("word %d of utterance %d: %w", idx, utt, ErrNotFound)
	}
	return WordRef{
		UtteranceNumber:       u.ID,
		WordIndex:             idx,
		Word:                  t.words[u.WordIDs[idx]],
		UtteranceText:         u.Text,
		TotalWordsInUtterance: len(u.WordIDs),
	}, nil
}

// WordRange returns words start..end (inclusive) of utterance utt. The range is
// clamped to the utterance; an empty range after clamping is ErrNotFound.
func (t *Transcript) WordRange(utt, start, end int) (WordRangeResult, error) {
	u, err := t.utteranceByNumber(utt)
	if err != nil {
		return WordRangeResult{}, err
	}
	start = max(0, start)
	end = min(len(u.WordIDs)-1, end)
	if start > end {
		return WordRangeResult{}, fmt.Errorf("words %d..%d of utterance %d: %w", start, end, utt, ErrNotFound)
	}
	first, last := u.WordIDs[start], u.WordIDs[end]
	words := slices.Clone(t.words[first : last+1])
	ws, we := wordBounds(t.words, u.WordIDs[start:end+1])
	return WordRangeResult{
		UtteranceNumber: u.ID,
		StartIndex:      start,
		EndIndex:        end,
		Text:            joinWordTexts(t.words, first, last),
		Words:           words,
		TimeSpan:        TimeRange{Start: ws, End: we, Duration: round3(we - ws)},
		UtteranceText:   u.Text,
	}, nil
}

// UtteranceByNumber returns the utterance numbered n with its words.
func (t *Transcript) UtteranceByNumber(n int) (UtteranceDetail, error) {
	u, err := t.utteranceByNumber(n)
	if err != nil {
		return UtteranceDetail{}, err
	}
	return t.detail(u), nil
}

func (t *Transcript) detail(u *Utterance) UtteranceDetail {
	first, last := u.WordIDs[0], u.WordIDs[len(u.WordIDs)-1]
	return UtteranceDetail{
		UtteranceNumber: u.ID,
		Speaker:         u.Speaker,
		Start:           u.Start,
		End:             u.End,
		Duration:        round3(u.Duration()),
		Text:            u.Text,
		Confidence:      copyFloat(u.Confidence),
		WordCount:       len(u.WordIDs),
		Words:           slices.Clone(t.words[first : last+1]),
	}
}

func (t *Transcript) utteranceByNumber(n int) (*Utterance, error) {
	k, ok := t.byNumber[n]
	if !ok {
		return nil, fmt.Errorf("utterance %d: %w", n, ErrNotFound)
	}
	return &t.utterances[k], nil
}

// FindWords returns every word whose text contains text.
func (t *Transcript) FindWords(text string, caseSensitive bool) []WordHit {
	needle := text
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}
	var hits []WordHit
	if needle == "" {
		return hits
	}
	for i, w := range t.words {
		hay := w.Text
		if !caseSensitive {
			hay = strings.ToLower(hay)
		}
		if !strings.Contains(hay, needle) {
			continue
		}
		u := t.utteranceOf(i)
		hits = append(hits, WordHit{
			UtteranceNumber: u.ID,
			WordIndex:       i - u.WordIDs[0],
			Word:            w,
			UtteranceText:   u.Text,
		})
	}
	return hits
}

// WordsInTimeRange returns the words lying entirely inside [start, end].
func (t *Transcript) WordsInTimeRange(start, end float64) []Word {
	if end < start {
		return nil
	}
	from := sort.Search(len(t.words), func(i int) bool {
		return t.words[i].Start >= start
	})
	var out []Word
	for i := from; i < len(t.words) && t.words[i].Start <= end; i++ {
		if t.words[i].End <= end {
			out = append(out, t.words[i])
		}
	}
	return out
}

// Stats computes transcript statistics. Duration comes from the metadata when
// present, else from the last word.
func (t *Transcript) Stats() Stats {
	if t == nil {
		return Stats{Speakers: []string{}}
	}
	seen := make(map[string]struct{})
	speakers := []string{}
	var confSum float64
	var confCount int
	var lastEnd float64
	for _, w := range t.words {
		if w.Speaker != "" {
			if _, ok := seen[w.Speaker]; !ok {
				seen[w.Speaker] = struct{}{}
				speakers = append(speakers, w.Speaker)
			}
		}
		if w.Confidence != nil {
			confSum += *w.Confidence
			confCount++
		}
		lastEnd = math.Max(lastEnd, w.End)
	}
	slices.Sort(speakers)
	stats := Stats{
		TotalUtterances: len(t.utterances),
		TotalWords:      len(t.words),
		TotalSpeakers:   len(speakers),
		Speakers:        speakers,
		Duration:        lastEnd,
		Metadata:        t.meta.clone(),
	}
	if confCount > 0 {
		stats.AverageConfidence = round3(confSum / float64(confCount))
	}
	if t.meta != nil && t.meta.Duration > 0 {
		stats.Duration = t.meta.Duration
	}
	return stats
}

// Export renders the transcript in one of the ExportKind layouts. The
// ExportDocument layout can be read back with ReadTranscriptJSON.
func (t *Transcript) Export(kind ExportKind) (any, error) {
	switch kind {
	case ExportWords:
		return t.Words(), nil
	case ExportUtterances:
		out := make([]UtteranceDetail, len(t.utterances))
		for i := range t.utterances {
			out[i] = t.detail(&t.utterances[i])
		}
		return out, nil
	case ExportDocument:
		stats := t.Stats()
		doc := transcriptDocument{
			Metadata: t.meta.clone(),
			Segments: make([]segmentRecord, len(t.utterances)),
			Stats:    &stats,
		}
		for i, u := range t.utterances {
			seg := segmentRecord{
				Speaker:    u.Speaker,
				Start:      u.Start,
				End:        u.End,
				Text:       u.Text,
				Confidence: copyFloat(u.Confidence),
				Words:      make([]wordRecord, len(u.WordIDs)),
			}
			for j, id := range u.WordIDs {
				w := t.words[id]
				pos := w.Position
				seg.Words[j] = wordRecord{
					Word:       w.Text,
					Start:      w.Start,
					End:        w.End,
					Position:   &pos,
					Confidence: copyFloat(w.Confidence),
				}
			}
			doc.Segments[i] = seg
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", kind)
	}
}
