package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

const (
	ruleWide       = 80
	ruleNarrow     = 40
	pauseThreshold = 3.0
	lowConfidence  = 0.5
	splitAbove     = 100
)

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	sentenceBreak = regexp.MustCompile(`[.!?]+`)
)

// CleanSpeakerName turns diarizer labels such as SPEAKER_00 into SPEAKER A.
// Labels in any other form are returned unchanged.
func CleanSpeakerName(speaker string) string {
	rest, ok := strings.CutPrefix(speaker, "SPEAKER_")
	if !ok {
		return speaker
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return speaker
	}
	if n < 26 {
		return "SPEAKER " + string(rune('A'+n))
	}
	return fmt.Sprintf("SPEAKER %d", n+1)
}

// CleanText collapses whitespace, removes spaces before punctuation and ends the
// text with a sentence terminator.
func CleanText(text string) string {
	text = spaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	for _, p := range []string{".", ",", "?", "!"} {
		text = strings.ReplaceAll(text, " "+p, p)
	}
	if text != "" && !strings.ContainsRune(".!?", rune(text[len(text)-1])) {
		text += "."
	}
	return text
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SpeakerNames maps diarizer labels to display names.
type SpeakerNames map[string]string

func (n SpeakerNames) display(speaker string) string {
	if name, ok := n[speaker]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return CleanSpeakerName(speaker)
}

// LoadSpeakerNames reads a JSON object of label to display name.
func LoadSpeakerNames(path string) (SpeakerNames, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read speaker names: %w", err)
	}
	var names SpeakerNames
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode speaker names %s: %w", filepath.Base(path), err)
	}
	return names, nil
}

// SpeakerTemplatePathFor returns talk_speaker_names.json for talk.csv.
func SpeakerTemplatePathFor(transcriptPath string) string {
	return strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath)) + "_speaker_names.json"
}

// SpeakerTemplate assigns PERSON_1, PERSON_2, ... to the sorted speaker labels.
func SpeakerTemplate(t *speechmine.Transcript) SpeakerNames {
	names := make(SpeakerNames)
	for i, speaker := range utteranceSpeakers(t.Utterances()) {
		names[speaker] = fmt.Sprintf("PERSON_%d", i+1)
	}
	return names
}

// WriteScript renders the transcript as a movie-style script with one block per
// speaker turn. Gaps longer than three seconds get a pause marker.
func WriteScript(w io.Writer, t *speechmine.Transcript, names SpeakerNames) error {
	p := &printer{w: w}
	wide := strings.Repeat("=", ruleWide)
	narrow := strings.Repeat("-", ruleNarrow)
	utts := t.Utterances()
	meta := t.Metadata()

	p.line(wide)
	p.line("TRANSCRIPT")
	p.line(wide)
	p.line("")

	if meta != nil {
		p.line("RECORDING DETAILS:")
		p.line(narrow)
		if meta.AudioFile != "" {
			p.printf("File: %s\n", filepath.Base(meta.AudioFile))
		}
		if meta.Duration > 0 {
			p.printf("Duration: %s\n", FormatTimestamp(meta.Duration))
		}
		if meta.Language != "" {
			p.printf("Language: %s (confidence: %.1f%%)\n", strings.ToUpper(meta.Language), meta.LanguageProbability*100)
		}
		if len(meta.Speakers) > 0 {
			p.printf("Speakers: %d\n", len(meta.Speakers))
		}
		if meta.ProcessingTimestamp != "" {
			p.printf("Processed: %s\n", meta.ProcessingTimestamp)
		}
		p.line("")
	}

	if speakers := utteranceSpeakers(utts); len(speakers) > 1 {
		p.line("CAST:")
		p.line(narrow)
		for _, s := range speakers {
			p.line(names.display(s))
		}
		p.line("")
	}

	p.line("TRANSCRIPT:")
	p.line(narrow)
	p.line("")

	current := ""
	for i, u := range utts {
		if i == 0 || u.Speaker != current {
			if i > 0 {
				p.line("")
			}
			flag := ""
			if u.Confidence != nil && *u.Confidence < lowConfidence {
				flag = " [LOW CONFIDENCE]"
			}
			p.printf("%s %s%s:\n", FormatRange(u.Start, u.End), names.display(u.Speaker), flag)
			current = u.Speaker
		}
		text := CleanText(u.Text)
		if len(text) > splitAbove {
			for _, s := range splitSentences(text) {
				p.printf("    %s\n", s)
			}
		} else {
			p.printf("    %s\n", text)
		}
		if i+1 < len(utts) {
			if gap := utts[i+1].Start - u.End; gap > pauseThreshold {
				p.line("")
				p.printf("    [...%s pause...]\n", FormatTimestamp(gap))
				p.line("")
			}
		}
	}

	p.line("")
	p.line(wide)
	p.line("END OF TRANSCRIPT")
	if meta != nil && meta.TotalSegments > 0 {
		p.printf("Total segments: %d\n", meta.TotalSegments)
	}
	if meta != nil && meta.TotalWords > 0 {
		p.printf("Total words: %d\n", meta.TotalWords)
	}
	p.line(wide)
	return p.err
}

func utteranceSpeakers(utts []speechmine.Utterance) []string {
	var speakers []string
	for _, u := range utts {
		if u.Speaker != "" && !slices.Contains(speakers, u.Speaker) {
			speakers = append(speakers, u.Speaker)
		}
	}
	slices.Sort(speakers)
	return speakers
}
