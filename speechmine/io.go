package speechmine

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ColumnOptions allows callers to choose which CSV/TSV columns map to record
// fields. Values are header names or 1-based "#N" indices; empty values are
// auto-detected from the active ColumnCandidates.
type ColumnOptions struct {
	TypeColumn       string
	SpeakerColumn    string
	StartColumn      string
	EndColumn        string
	TextColumn       string
	WordColumn       string
	PositionColumn   string
	ConfidenceColumn string
}

// TranscriptFileMetadata provides header information and automatic column suggestions.
type TranscriptFileMetadata struct {
	Columns   []string
	Suggested ColumnOptions
}

// LoadTranscript reads a .csv, .tsv or .json transcript file. meta may be nil.
func LoadTranscript(path string, meta *Metadata, opts ColumnOptions) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	var t *Transcript
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		t, err = ReadTranscriptCSV(f, ',', meta, opts)
	case ".tsv":
		t, err = ReadTranscriptCSV(f, '\t', meta, opts)
	case ".json":
		t, err = ReadTranscriptJSON(f, meta)
	default:
		return nil, fmt.Errorf("unsupported transcript format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ReadTranscriptCSV parses segment and word rows. A word row belongs to the
// segment whose text it repeats, else to the most recent segment row. Word rows
// that precede any segment are grouped into one utterance per run of equal
// speaker and text. Segments without words are dropped.
func ReadTranscriptCSV(r io.Reader, comma rune, meta *Metadata, opts ColumnOptions) (*Transcript, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	row, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return NewTranscript(nil, nil, meta)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveTranscriptColumns(cleanRow(row), opts)
	if err != nil {
		return nil, err
	}
	b := newTranscriptBuilder()
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		rec, err := cols.record(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := b.add(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return b.build(meta)
}

type transcriptDocument struct {
	Metadata *Metadata       `json:"metadata,omitempty"`
	Segments []segmentRecord `json:"segments"`
	Stats    *Stats          `json:"stats,omitempty"`
}

type segmentRecord struct {
	Speaker    string       `json:"speaker"`
	Start      float64      `json:"start"`
	End        float64      `json:"end"`
	Text       string       `json:"text"`
	Confidence *float64     `json:"confidence,omitempty"`
	Words      []wordRecord `json:"words"`
}

type wordRecord struct {
	Word       string   `json:"word"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Position   *int     `json:"position,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ReadTranscriptJSON parses a {"segments": [...]} document. When meta is nil
// the document's own metadata, if any, is attached.
func ReadTranscriptJSON(r io.Reader, meta *Metadata) (*Transcript, error) {
	var doc transcriptDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if meta == nil {
		meta = doc.Metadata
	}
	b := newTranscriptBuilder()
	for i, seg := range doc.Segments {
		b.startSegment(seg.Speaker, seg.Text, seg.Confidence)
		for j, w := range seg.Words {
			start, end := w.Start, w.End
			rec := rawRecord{
				kind:       "word",
				speaker:    seg.Speaker,
				text:       seg.Text,
				word:       w.Word,
				start:      &start,
				end:        &end,
				position:   w.Position,
				confidence: w.Confidence,
			}
			if err := b.add(rec); err != nil {
				return nil, fmt.Errorf("segment %d word %d: %w", i, j, err)
			}
		}
	}
	return b.build(meta)
}

// InspectTranscriptColumns returns header information and automatic column
// suggestions for a CSV/TSV transcript.
func InspectTranscriptColumns(path string) (TranscriptFileMetadata, error) {
	meta := TranscriptFileMetadata{}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".tsv" {
		return meta, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	if ext == ".tsv" {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1
	row, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return meta, nil
		}
		return meta, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	header := cleanRow(row)
	meta.Columns = header
	cols, err := resolveTranscriptColumns(header, ColumnOptions{})
	if err == nil {
		meta.Suggested = ColumnOptions{
			TypeColumn:       headerNameForIndex(header, cols.typ),
			SpeakerColumn:    headerNameForIndex(header, cols.speaker),
			StartColumn:      headerNameForIndex(header, cols.start),
			EndColumn:        headerNameForIndex(header, cols.end),
			TextColumn:       headerNameForIndex(header, cols.text),
			WordColumn:       headerNameForIndex(header, cols.word),
			PositionColumn:   headerNameForIndex(header, cols.position),
			ConfidenceColumn: headerNameForIndex(header, cols.confidence),
		}
	}
	return meta, nil
}

type rawRecord struct {
	kind       string
	speaker    string
	text       string
	word       string
	start      *float64
	end        *float64
	position   *int
	confidence *float64
}

type transcriptColumns struct {
	typ, speaker, start, end, text, word, position, confidence int
}

func resolveTranscriptColumns(header []string, opts ColumnOptions) (transcriptColumns, error) {
	candidates := getColumnCandidates()
	var (
		cols transcriptColumns
		err  error
	)
	if cols.typ, err = pickColumn(header, opts.TypeColumn, candidates.Type); err != nil {
		return cols, err
	}
	if cols.speaker, err = pickColumn(header, opts.SpeakerColumn, candidates.Speaker); err != nil {
		return cols, err
	}
	if cols.start, err = pickColumn(header, opts.StartColumn, candidates.Start); err != nil {
		return cols, err
	}
	if cols.end, err = pickColumn(header, opts.EndColumn, candidates.End); err != nil {
		return cols, err
	}
	if cols.text, err = pickColumn(header, opts.TextColumn, candidates.Text); err != nil {
		return cols, err
	}
	if cols.word, err = pickColumn(header, opts.WordColumn, candidates.Word); err != nil {
		return cols, err
	}
	if cols.position, err = pickColumn(header, opts.PositionColumn, candidates.Position); err != nil {
		return cols, err
	}
	if cols.confidence, err = pickColumn(header, opts.ConfidenceColumn, candidates.Confidence); err != nil {
		return cols, err
	}
	switch {
	case cols.start < 0:
		return cols, errors.New("no start time column found")
	case cols.end < 0:
		return cols, errors.New("no end time column found")
	case cols.word < 0 && cols.text < 0:
		return cols, errors.New("no word or text column found")
	}
	return cols, nil
}

func (c transcriptColumns) record(row []string) (rawRecord, error) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return cleanCell(row[idx])
	}
	rec := rawRecord{
		kind:    strings.ToLower(cell(c.typ)),
		speaker: cell(c.speaker),
		text:    cell(c.text),
		word:    cell(c.word),
	}
	if c.word < 0 {
		// One row per word, the text column holds the word itself.
		rec.word, rec.text = rec.text, ""
	}
	if rec.kind == "" {
		rec.kind = "word"
		if c.word >= 0 && rec.word == "" {
			rec.kind = "segment"
		}
	}
	var err error
	if rec.start, err = parseOptionalFloat("start", cell(c.start)); err != nil {
		return rec, err
	}
	if rec.end, err = parseOptionalFloat("end", cell(c.end)); err != nil {
		return rec, err
	}
	if rec.confidence, err = parseOptionalFloat("confidence", cell(c.confidence)); err != nil {
		return rec, err
	}
	if pos := cell(c.position); pos != "" {
		// pandas writes integer columns containing blanks as floats.
		f, err := strconv.ParseFloat(pos, 64)
		if err != nil || f != math.Trunc(f) {
			return rec, fmt.Errorf("invalid word position %q", pos)
		}
		p := int(f)
		rec.position = &p
	}
	return rec, nil
}

func parseOptionalFloat(field, v string) (*float64, error) {
	switch strings.ToLower(v) {
	case "", "nan", "none", "null":
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, v)
	}
	return &f, nil
}

type utteranceSlot struct {
	speaker    string
	text       string
	confidence *float64
	synthetic  bool
	words      []Word
}

type transcriptBuilder struct {
	slots   []utteranceSlot
	current int
	byText  map[string]int
}

func newTranscriptBuilder() *transcriptBuilder {
	return &transcriptBuilder{current: -1, byText: make(map[string]int)}
}

func (b *transcriptBuilder) startSegment(speaker, text string, confidence *float64) {
	b.slots = append(b.slots, utteranceSlot{speaker: speaker, text: text, confidence: confidence})
	b.current = len(b.slots) - 1
	if key := strings.TrimSpace(text); key != "" {
		b.byText[key] = b.current
	}
}

func (b *transcriptBuilder) add(rec rawRecord) error {
	switch rec.kind {
	case "segment":
		b.startSegment(rec.speaker, rec.text, rec.confidence)
		return nil
	case "word":
	default:
		return fmt.Errorf("unknown record type %q", rec.kind)
	}
	if rec.start == nil || rec.end == nil {
		return errors.New("word rows need start and end times")
	}
	target := b.current
	key := strings.TrimSpace(rec.text)
	if target >= 0 && key != "" && strings.TrimSpace(b.slots[target].text) != key {
		if k, ok := b.byText[key]; ok && !b.slots[k].synthetic {
			target = k
		}
	}
	if target < 0 || (b.slots[target].synthetic && (b.slots[target].speaker != rec.speaker || b.slots[target].text != rec.text)) {
		b.slots = append(b.slots, utteranceSlot{speaker: rec.speaker, text: rec.text, synthetic: true})
		target = len(b.slots) - 1
		b.current = target
	}
	slot := &b.slots[target]
	pos := len(slot.words)
	if rec.position != nil {
		pos = *rec.position
	}
	slot.words = append(slot.words, Word{
		Text:       rec.word,
		Start:      *rec.start,
		End:        *rec.end,
		Speaker:    rec.speaker,
		Position:   pos,
		Confidence: rec.confidence,
	})
	return nil
}

// build numbers the utterances that received words in segment order.
func (b *transcriptBuilder) build(meta *Metadata) (*Transcript, error) {
	var (
		words      []Word
		utterances []Utterance
	)
	for _, slot := range b.slots {
		if len(slot.words) == 0 {
			continue
		}
		id := len(utterances)
		ids := make([]int, 0, len(slot.words))
		for _, w := range slot.words {
			w.SegmentID = id
			ids = append(ids, len(words))
			words = append(words, w)
		}
		start, end := wordBounds(words, ids)
		speaker := slot.speaker
		if speaker == "" {
			speaker = slot.words[0].Speaker
		}
		utterances = append(utterances, Utterance{
			ID:         id,
			Speaker:    speaker,
			Start:      start,
			End:        end,
			Text:       slot.text,
			Confidence: slot.confidence,
			WordIDs:    ids,
		})
	}
	return NewTranscript(words, utterances, meta)
}

func cleanRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cleanCell(cell)
	}
	return out
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func findColumn(header []string, candidates []string) int {
	for _, cand := range candidates {
		for i, col := range header {
			if strings.EqualFold(col, cand) {
				return i
			}
		}
	}
	return -1
}

func pickColumn(header []string, explicit string, candidates []string) (int, error) {
	if strings.TrimSpace(explicit) != "" {
		return matchExplicitColumn(header, explicit)
	}
	return findColumn(header, candidates), nil
}

func matchExplicitColumn(header []string, explicit string) (int, error) {
	trimmed := strings.TrimSpace(explicit)
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, err
		}
		if idx >= len(header) {
			return -1, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, nil
	}
	return -1, fmt.Errorf("column %q not found", explicit)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	if trimmed == "" {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	idx, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}

func headerNameForIndex(header []string, idx int) string {
	if idx < 0 {
		return ""
	}
	if idx < len(header) && header[idx] != "" {
		return header[idx]
	}
	return fmt.Sprintf("#%d", idx+1)
}
