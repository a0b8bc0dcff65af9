package speechmine

import (
	"math"
	"slices"
	"strings"
)

// overlapTolerance absorbs rounding in upstream word timestamps, in seconds.
const overlapTolerance = 0.01

// Transcript is an immutable, validated sequence of words grouped into utterances.
type Transcript struct {
	words      []Word
	utterances []Utterance
	wordUtt    []int
	byNumber   map[int]int
	meta       *Metadata
	index      *tokenIndex
}

// NewTranscript validates words and utterances and builds a searchable transcript.
// Inputs are copied. Words with an empty speaker inherit their utterance's
// speaker, and an utterance with empty text gets its words joined by spaces.
func NewTranscript(words []Word, utterances []Utterance, meta *Metadata) (*Transcript, error) {
	ws := slices.Clone(words)
	for i, w := range ws {
		if !finite(w.Start) || !finite(w.End) {
			return nil, wordInvariant(i, "has a non-finite timestamp")
		}
		if w.End < w.Start {
			return nil, wordInvariant(i, "ends at %.3f before it starts at %.3f", w.End, w.Start)
		}
		if w.Confidence != nil && (*w.Confidence < 0 || *w.Confidence > 1) {
			return nil, wordInvariant(i, "has confidence %.3f outside [0,1]", *w.Confidence)
		}
		if i == 0 {
			continue
		}
		prev := ws[i-1]
		if w.Start < prev.Start {
			return nil, wordInvariant(i, "starts at %.3f before the previous word at %.3f", w.Start, prev.Start)
		}
		if w.Start < prev.End-overlapTolerance {
			return nil, wordInvariant(i, "overlaps the previous word (%.3f < %.3f)", w.Start, prev.End)
		}
	}

	us := make([]Utterance, len(utterances))
	for i, u := range utterances {
		if len(u.WordIDs) == 0 {
			return nil, utteranceInvariant(i, "has no words")
		}
		us[i] = u.clone()
	}
	slices.SortStableFunc(us, func(a, b Utterance) int {
		return a.WordIDs[0] - b.WordIDs[0]
	})

	wordUtt := make([]int, len(ws))
	byNumber := make(map[int]int, len(us))
	next := 0
	for k := range us {
		u := &us[k]
		if _, dup := byNumber[u.ID]; dup {
			return nil, utteranceInvariant(u.ID, "is numbered twice")
		}
		byNumber[u.ID] = k
		for _, id := range u.WordIDs {
			if id != next {
				if id < next {
					return nil, utteranceInvariant(u.ID, "claims word %d which already belongs to another utterance", id)
				}
				return nil, utteranceInvariant(u.ID, "word list is not contiguous at word %d", id)
			}
			if id >= len(ws) {
				return nil, utteranceInvariant(u.ID, "references word %d beyond %d words", id, len(ws))
			}
			wordUtt[id] = k
			if ws[id].Speaker == "" {
				ws[id].Speaker = u.Speaker
			}
			ws[id].SegmentID = u.ID
			next++
		}
		start, end := wordBounds(ws, u.WordIDs)
		if !approxEqual(u.Start, start) || !approxEqual(u.End, end) {
			return nil, utteranceInvariant(u.ID, "bounds [%.3f, %.3f] do not match its words [%.3f, %.3f]", u.Start, u.End, start, end)
		}
		if strings.TrimSpace(u.Text) == "" {
			u.Text = joinWordTexts(ws, u.WordIDs[0], u.WordIDs[len(u.WordIDs)-1])
		}
	}
	if next != len(ws) {
		return nil, wordInvariant(next, "does not belong to any utterance")
	}

	return &Transcript{
		words:      ws,
		utterances: us,
		wordUtt:    wordUtt,
		byNumber:   byNumber,
		meta:       meta.clone(),
		index:      newTokenIndex(ws),
	}, nil
}

// Len returns the number of words.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.words)
}

// Words returns a copy of the word list.
func (t *Transcript) Words() []Word {
	return slices.Clone(t.words)
}

// Utterances returns a copy of the utterances in transcript order.
func (t *Transcript) Utterances() []Utterance {
	out := make([]Utterance, len(t.utterances))
	for i, u := range t.utterances {
		out[i] = u.clone()
	}
	return out
}

// Metadata returns a copy of the attached recording metadata, or nil.
func (t *Transcript) Metadata() *Metadata {
	return t.meta.clone()
}

// utteranceOf returns the utterance containing word i. It panics when i is out of range.
func (t *Transcript) utteranceOf(i int) *Utterance {
	return &t.utterances[t.wordUtt[i]]
}

// WithMetadata returns a transcript sharing t's words but carrying meta.
func (t *Transcript) WithMetadata(meta *Metadata) *Transcript {
	out := *t
	out.meta = meta.clone()
	return &out
}

func wordBounds(words []Word, ids []int) (float64, float64) {
	start := words[ids[0]].Start
	end := words[ids[0]].End
	for _, id := range ids[1:] {
		start = math.Min(start, words[id].Start)
		end = math.Max(end, words[id].End)
	}
	return start, end
}

func joinWordTexts(words []Word, start, end int) string {
	parts := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		if text := strings.TrimSpace(words[i].Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}
