package speechmine

// OutputType selects how matched spans are projected into results.
type OutputType string

const (
	// OutputUtterance attributes each match to the speaker turn containing its first word.
	OutputUtterance OutputType = "utterance"
	// OutputTimestamp reports the tight time window covered by the matched words.
	OutputTimestamp OutputType = "timestamp"
)

// Word is a single timestamped transcript word.
type Word struct {
	Text       string   `json:"word"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Speaker    string   `json:"speaker,omitempty"`
	SegmentID  int      `json:"utterance_number"`
	Position   int      `json:"word_position"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Duration returns End-Start.
func (w Word) Duration() float64 {
	return w.End - w.Start
}

// Utterance is one speaker turn. WordIDs index into the transcript word list.
type Utterance struct {
	ID         int      `json:"utterance_number"`
	Speaker    string   `json:"speaker"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	WordIDs    []int    `json:"word_ids"`
}

// Duration returns End-Start.
func (u Utterance) Duration() float64 {
	return u.End - u.Start
}

func (u Utterance) clone() Utterance {
	out := u
	out.WordIDs = append([]int(nil), u.WordIDs...)
	if u.Confidence != nil {
		c := *u.Confidence
		out.Confidence = &c
	}
	return out
}

// Span is a contiguous run of words identified by inclusive word indices.
type Span struct {
	Start int
	End   int
	Score float64
}

// Len returns the number of words in the span.
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// TimeRange is a start/end pair with its duration, in seconds.
type TimeRange struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// MatchedWord describes one word inside a match.
type MatchedWord struct {
	Word       string   `json:"word"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// MatchIndices locates a match inside the transcript and inside its utterance.
// Utterance indices are relative to the first word of the attributed utterance.
type MatchIndices struct {
	Start          int `json:"start"`
	End            int `json:"end"`
	UtteranceStart int `json:"utterance_start"`
	UtteranceEnd   int `json:"utterance_end"`
}

// Match carries the fields shared by every result shape.
type Match struct {
	MatchedText       string        `json:"matched_text"`
	SimilarityScore   float64       `json:"similarity_score"`
	Speaker           string        `json:"speaker"`
	FullSegmentText   string        `json:"full_segment_text"`
	SegmentConfidence *float64      `json:"segment_confidence,omitempty"`
	MatchIndices      MatchIndices  `json:"match_indices"`
	MatchedWords      []MatchedWord `json:"matched_words"`
}

// SearchResult is either an UtteranceResult or a TimestampResult.
type SearchResult interface {
	Common() Match
	Window() TimeRange
	Kind() OutputType
	isSearchResult()
}

// UtteranceResult is produced in utterance mode.
type UtteranceResult struct {
	Match
	TimeSpan        TimeRange `json:"time_span"`
	UtteranceNumber int       `json:"utterance_number"`
}

func (r UtteranceResult) Common() Match     { return r.Match }
func (r UtteranceResult) Window() TimeRange { return r.TimeSpan }
func (r UtteranceResult) Kind() OutputType  { return OutputUtterance }
func (UtteranceResult) isSearchResult()     {}

// TimestampResult is produced in timestamp mode.
type TimestampResult struct {
	Match
	TimeWindow TimeRange `json:"time_window"`
}

func (r TimestampResult) Common() Match     { return r.Match }
func (r TimestampResult) Window() TimeRange { return r.TimeWindow }
func (r TimestampResult) Kind() OutputType  { return OutputTimestamp }
func (TimestampResult) isSearchResult()     {}

// Response is the outcome of one search, ready for serialization.
type Response struct {
	Query          string         `json:"query"`
	Parameters     Options        `json:"search_parameters"`
	TranscriptInfo Stats          `json:"transcript_info"`
	Results        []SearchResult `json:"results"`
	TotalMatches   int            `json:"total_matches"`
}
