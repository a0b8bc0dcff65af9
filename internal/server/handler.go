package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

// Search serves the search endpoints. Transcripts are parsed per request.
type Search struct {
	svc        *speechmine.Service
	logger     *zap.Logger
	dataDir    string
	defaults   speechmine.Options
	batchLimit int
}

// NewSearch creates the search handler. Relative transcript paths resolve
// against dataDir.
func NewSearch(svc *speechmine.Service, defaults speechmine.Options, dataDir string, batchLimit int, logger *zap.Logger) *Search {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{
		svc:        svc,
		logger:     logger,
		dataDir:    dataDir,
		defaults:   defaults,
		batchLimit: batchLimit,
	}
}

// Search handles POST /v1/search.
func (h *Search) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, ErrInvalidPayload(err))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, err)
	}
	opts, err := h.options(req.Options)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	t, err := h.loadTranscript(req.TranscriptSource)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	resp, err := h.svc.Search(c.Request().Context(), t, req.Query, opts)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, resp)
}

// SearchBatch handles POST /v1/search/batch. A failing query is reported in
// its item and does not fail the request.
func (h *Search) SearchBatch(c echo.Context) error {
	var req BatchSearchRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, ErrInvalidPayload(err))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, err)
	}
	opts, err := h.options(req.Options)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	t, err := h.loadTranscript(req.TranscriptSource)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	jobs := make([]speechmine.BatchJob, len(req.Queries))
	for i, q := range req.Queries {
		jobs[i] = speechmine.BatchJob{Transcript: t, Query: q, Options: opts}
	}
	results, err := h.svc.SearchBatch(c.Request().Context(), jobs, h.batchLimit)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	out := BatchResponse{Results: make([]BatchItem, len(results))}
	for i, r := range results {
		out.Results[i] = BatchItem{Query: req.Queries[i], Response: r.Response}
		if r.Err != nil {
			out.Results[i].Error = r.Err.Error()
		}
	}
	return HandleSuccess(h.logger, c, out)
}

// Stats handles POST /v1/transcripts/stats.
func (h *Search) Stats(c echo.Context) error {
	var req StatsRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, ErrInvalidPayload(err))
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, err)
	}
	t, err := h.loadTranscript(req.TranscriptSource)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, t.Stats())
}

// options overlays the request options on the server defaults.
func (h *Search) options(raw json.RawMessage) (speechmine.Options, error) {
	opts := h.defaults
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return opts, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return opts, ErrInvalidOptions(err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (h *Search) loadTranscript(src TranscriptSource) (*speechmine.Transcript, error) {
	if src.TranscriptCSV != "" {
		t, err := speechmine.ReadTranscriptCSV(strings.NewReader(src.TranscriptCSV), ',', src.Metadata, speechmine.ColumnOptions{})
		if err != nil {
			return nil, transcriptError(err)
		}
		return t, nil
	}

	path, err := h.resolve(src.TranscriptPath)
	if err != nil {
		return nil, err
	}
	meta := src.Metadata
	if meta == nil {
		if meta, err = speechmine.DiscoverMetadata(path); err != nil {
			return nil, ErrInvalidTranscript(err).WithDetail("metadata", filepath.Base(speechmine.MetadataPathFor(path)))
		}
	}
	t, err := speechmine.LoadTranscript(path, meta, speechmine.ColumnOptions{})
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound("Transcript").WithDetail("transcript_path", src.TranscriptPath)
	}
	if err != nil {
		return nil, transcriptError(err)
	}
	return t, nil
}

// resolve maps a request path into the data directory. Absolute paths and
// paths climbing out of the directory are refused.
func (h *Search) resolve(p string) (string, error) {
	p = filepath.FromSlash(strings.TrimSpace(p))
	if !filepath.IsLocal(p) {
		return "", ErrForbidden("transcript_path must stay inside the data directory").
			WithDetail("transcript_path", p)
	}
	return filepath.Join(h.dataDir, p), nil
}

func transcriptError(err error) error {
	if errors.Is(err, speechmine.ErrInvariant) {
		return err
	}
	return ErrInvalidTranscript(err)
}
