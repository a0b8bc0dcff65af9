package speechmine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Metadata is the companion document written next to a diarized transcript.
type Metadata struct {
	AudioFile           string   `json:"audio_file,omitempty"`
	Language            string   `json:"language,omitempty"`
	LanguageProbability float64  `json:"language_probability,omitempty"`
	Duration            float64  `json:"duration,omitempty"`
	TotalSegments       int      `json:"total_segments,omitempty"`
	TotalWords          int      `json:"total_words,omitempty"`
	Speakers            []string `json:"speakers,omitempty"`
	ProcessingTimestamp string   `json:"processing_timestamp,omitempty"`
}

func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	out.Speakers = slices.Clone(m.Speakers)
	return &out
}

// LoadMetadata reads a metadata JSON document.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

// MetadataPathFor returns the conventional metadata path for a transcript file,
// e.g. talk.csv -> talk_metadata.json.
func MetadataPathFor(transcriptPath string) string {
	return strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath)) + "_metadata.json"
}

// DiscoverMetadata loads the companion metadata of transcriptPath if it exists.
// A missing file yields nil without error.
func DiscoverMetadata(transcriptPath string) (*Metadata, error) {
	meta, err := LoadMetadata(MetadataPathFor(transcriptPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return meta, err
}
