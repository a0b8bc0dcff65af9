package server

import (
	"encoding/json"

	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

// TranscriptSource names the transcript a request works on: a CSV/TSV/JSON
// file under the data directory, or CSV content sent inline.
type TranscriptSource struct {
	TranscriptPath string               `json:"transcript_path" validate:"required_without=TranscriptCSV,excluded_with=TranscriptCSV"`
	TranscriptCSV  string               `json:"transcript_csv"`
	Metadata       *speechmine.Metadata `json:"metadata,omitempty"`
}

// SearchRequest is the body of POST /v1/search. Options missing from the
// request keep the server defaults. An empty query yields no results.
type SearchRequest struct {
	TranscriptSource
	Query   string          `json:"query"`
	Options json.RawMessage `json:"options,omitempty"`
}

// BatchSearchRequest is the body of POST /v1/search/batch.
type BatchSearchRequest struct {
	TranscriptSource
	Queries []string        `json:"queries" validate:"required,min=1,max=100"`
	Options json.RawMessage `json:"options,omitempty"`
}

// StatsRequest is the body of POST /v1/transcripts/stats.
type StatsRequest struct {
	TranscriptSource
}

// BatchItem is one query's outcome in a batch response.
type BatchItem struct {
	Query    string               `json:"query"`
	Response *speechmine.Response `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// BatchResponse is the data of a POST /v1/search/batch response.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
}
