package speechmine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service runs fuzzy searches over transcripts. It holds no per-search state
// and is safe for concurrent use.
type Service struct {
	scorer Scorer
	logger *zap.Logger
}

// NewService constructs a service. A nil scorer selects HybridScorer and a nil
// logger discards output.
func NewService(scorer Scorer, logger *zap.Logger) *Service {
	if scorer == nil {
		scorer = HybridScorer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scorer: scorer, logger: logger}
}

// Search finds the spans of t that best match query. Options are validated
// before any work starts. An empty query or transcript yields no results.
func (s *Service) Search(ctx context.Context, t *Transcript, query string, opts Options) (*Response, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	began := time.Now()
	resp := &Response{
		Query:          query,
		Parameters:     opts,
		TranscriptInfo: t.Stats(),
		Results:        []SearchResult{},
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 || t.Len() == 0 {
		s.logger.Debug("search.empty_input",
			zap.Int("query_tokens", len(queryTokens)),
			zap.Int("words", t.Len()),
		)
		return resp, nil
	}

	candidates, err := s.scoreWindows(ctx, t.index, queryTokens, opts.WindowTolerance)
	if err != nil {
		return nil, err
	}
	merged := suppressOverlaps(candidates)
	ranked := rankSpans(merged, t.words, opts)
	resp.Results = t.project(ranked, opts.OutputType)
	resp.TotalMatches = len(resp.Results)

	s.logger.Info("search.completed",
		zap.String("query", query),
		zap.Int("words", t.Len()),
		zap.Int("candidates", len(candidates)),
		zap.Int("merged", len(merged)),
		zap.Int("results", resp.TotalMatches),
		zap.Duration("elapsed", time.Since(began)),
	)
	return resp, nil
}

// scoreWindows scores every candidate window. Scores are rounded here so that
// range filtering sees the same value that is reported.
func (s *Service) scoreWindows(ctx context.Context, idx *tokenIndex, query []string, tolerance int) ([]Span, error) {
	var spans []Span
	lastStart := -1
	for sp := range idx.windows(len(query), tolerance) {
		if sp.Start != lastStart {
			lastStart = sp.Start
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sp.Score = roundScore(s.scorer.Score(query, idx.spanTokens(sp.Start, sp.End)))
		spans = append(spans, sp)
	}
	return spans, nil
}

// BatchJob is one search of a SearchBatch call.
type BatchJob struct {
	Transcript *Transcript
	Query      string
	Options    Options
}

// BatchResult pairs a job's response with its error, if any.
type BatchResult struct {
	Response *Response
	Err      error
}

// SearchBatch runs jobs concurrently, at most limit at a time (limit <= 0 means
// no limit). Results keep the order of jobs. Per-job failures are reported in
// BatchResult.Err; only cancellation of ctx aborts the batch.
func (s *Service) SearchBatch(ctx context.Context, jobs []BatchJob, limit int) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			resp, err := s.Search(gctx, job.Transcript, job.Query, job.Options)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			results[i] = BatchResult{Response: resp, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("search.batch_aborted", zap.Int("jobs", len(jobs)), zap.Error(err))
		return nil, err
	}
	return results, nil
}
