package speechmine

import "sync"

// ColumnCandidates defines possible header names for auto-detecting transcript CSV/TSV columns.
type ColumnCandidates struct {
	Type       []string `json:"type"`
	Speaker    []string `json:"speaker"`
	Start      []string `json:"start"`
	End        []string `json:"end"`
	Text       []string `json:"text"`
	Word       []string `json:"word"`
	Position   []string `json:"position"`
	Confidence []string `json:"confidence"`
}

var (
	columnCandidatesMu  sync.RWMutex
	activeColumnOptions = defaultColumnCandidates()
)

func defaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		Type:       []string{"type", "kind", "record_type", "row_type"},
		Speaker:    []string{"speaker", "speaker_id", "speaker_label", "spk"},
		Start:      []string{"start", "start_time", "begin", "start_sec"},
		End:        []string{"end", "end_time", "stop", "end_sec"},
		Text:       []string{"text", "segment_text", "transcript"},
		Word:       []string{"word", "token"},
		Position:   []string{"word_position", "position", "word_index"},
		Confidence: []string{"confidence", "probability", "prob"},
	}
}

// DefaultColumnCandidates returns the built-in column detection candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return defaultColumnCandidates().clone()
}

// SetColumnCandidates updates the candidates used during auto-detection.
// Nil fields fall back to the built-in defaults.
func SetColumnCandidates(candidates ColumnCandidates) {
	columnCandidatesMu.Lock()
	defer columnCandidatesMu.Unlock()
	activeColumnOptions = candidates.withDefaults()
}

func getColumnCandidates() ColumnCandidates {
	columnCandidatesMu.RLock()
	defer columnCandidatesMu.RUnlock()
	return activeColumnOptions.clone()
}

func (c ColumnCandidates) withDefaults() ColumnCandidates {
	defaults := defaultColumnCandidates()
	return ColumnCandidates{
		Type:       pickStrings(c.Type, defaults.Type),
		Speaker:    pickStrings(c.Speaker, defaults.Speaker),
		Start:      pickStrings(c.Start, defaults.Start),
		End:        pickStrings(c.End, defaults.End),
		Text:       pickStrings(c.Text, defaults.Text),
		Word:       pickStrings(c.Word, defaults.Word),
		Position:   pickStrings(c.Position, defaults.Position),
		Confidence: pickStrings(c.Confidence, defaults.Confidence),
	}
}

func (c ColumnCandidates) clone() ColumnCandidates {
	return ColumnCandidates{
		Type:       cloneStrings(c.Type),
		Speaker:    cloneStrings(c.Speaker),
		Start:      cloneStrings(c.Start),
		End:        cloneStrings(c.End),
		Text:       cloneStrings(c.Text),
		Word:       cloneStrings(c.Word),
		Position:   cloneStrings(c.Position),
		Confidence: cloneStrings(c.Confidence),
	}
}

func pickStrings(custom, fallback []string) []string {
	if custom == nil {
		return cloneStrings(fallback)
	}
	return cloneStrings(custom)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
