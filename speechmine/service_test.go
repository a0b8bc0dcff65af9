package speechmine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// singleUtterance builds a transcript whose words all belong to one utterance.
func singleUtterance(t *testing.T, texts []string, times [][2]float64) *Transcript {
	t.Helper()
	require.Len(t, times, len(texts))
	words := make([]Word, len(texts))
	ids := make([]int, len(texts))
	for i, text := range texts {
		words[i] = Word{Text: text, Start: times[i][0], End: times[i][1], Position: i}
		ids[i] = i
	}
	var utts []Utterance
	if len(words) > 0 {
		utts = []Utterance{{
			ID:      0,
			Speaker: "SPEAKER_00",
			Start:   times[0][0],
			End:     times[len(times)-1][1],
			WordIDs: ids,
		}}
	}
	tr, err := NewTranscript(words, utts, nil)
	require.NoError(t, err)
	return tr
}

// evenlySpaced gives every word a one second slot.
func evenlySpaced(t *testing.T, texts ...string) *Transcript {
	t.Helper()
	times := make([][2]float64, len(texts))
	for i := range texts {
		times[i] = [2]float64{float64(i), float64(i) + 1}
	}
	return singleUtterance(t, texts, times)
}

func helloTranscript(t *testing.T) *Transcript {
	return singleUtterance(t,
		[]string{"hello", "world", "how", "are", "you"},
		[][2]float64{{0, 0.5}, {0.5, 1.0}, {1.0, 1.3}, {1.3, 1.5}, {1.5, 1.9}},
	)
}

func searchOpts(minScore float64) Options {
	opts := DefaultOptions()
	opts.SimilarityMin = minScore
	return opts
}

func TestSearchExactMatch(t *testing.T) {
	svc := NewService(nil, zaptest.NewLogger(t))
	resp, err := svc.Search(context.Background(), helloTranscript(t), "hello world", searchOpts(0.5))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.TotalMatches)

	res, ok := resp.Results[0].(UtteranceResult)
	require.True(t, ok)
	assert.Equal(t, "hello world", res.MatchedText)
	assert.Equal(t, 1.0, res.SimilarityScore)
	assert.Equal(t, 0.0, res.TimeSpan.Start)
	assert.Equal(t, 1.0, res.TimeSpan.End)
	assert.Equal(t, 1.0, res.TimeSpan.Duration)
	assert.Equal(t, 0, res.UtteranceNumber)
	assert.Equal(t, "SPEAKER_00", res.Speaker)
	assert.Equal(t, "hello world how are you", res.FullSegmentText)
	assert.Equal(t, MatchIndices{Start: 0, End: 1, UtteranceStart: 0, UtteranceEnd: 1}, res.MatchIndices)
	require.Len(t, res.MatchedWords, 2)
	assert.Equal(t, "world", res.MatchedWords[1].Word)
}

func TestSearchMisspelledQuery(t *testing.T) {
	svc := NewService(nil, nil)
	resp, err := svc.Search(context.Background(), helloTranscript(t), "helo wrld", searchOpts(0.5))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0].Common()
	assert.Equal(t, "hello world", top.MatchedText)
	assert.Greater(t, top.SimilarityScore, 0.5)
	assert.Less(t, top.SimilarityScore, 1.0)
	assert.InDelta(t, 0.809, top.SimilarityScore, 0.002)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Common().SimilarityScore, 0.5)
	}
}

func TestSearchTypoAgainstLongerTranscript(t *testing.T) {
	tr := evenlySpaced(t, "hello", "world", "testing", "fuzzy", "matching")
	resp, err := NewService(nil, nil).Search(context.Background(), tr, "helo world", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0].Common()
	assert.Greater(t, top.SimilarityScore, 0.7)
	assert.Equal(t, 0, top.MatchIndices.Start)
	assert.Equal(t, 1, top.MatchIndices.End)
}

func TestSearchEmptyInputs(t *testing.T) {
	svc := NewService(nil, nil)
	ctx := context.Background()

	for _, q := range []string{"", "   ", "?!", "..."} {
		resp, err := svc.Search(ctx, helloTranscript(t), q, DefaultOptions())
		require.NoError(t, err, q)
		assert.Empty(t, resp.Results, q)
		assert.NotNil(t, resp.Results, q)
		assert.Equal(t, 0, resp.TotalMatches)
	}

	empty, err := NewTranscript(nil, nil, nil)
	require.NoError(t, err)
	resp, err := svc.Search(ctx, empty, "hello", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	resp, err = svc.Search(ctx, nil, "hello", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchHighThresholdIsEmptyNotError(t *testing.T) {
	resp, err := NewService(nil, nil).Search(context.Background(), helloTranscript(t), "completely unrelated phrase", searchOpts(0.9))
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchRejectsInvalidOptions(t *testing.T) {
	svc := NewService(ScorerFunc(func(_, _ []string) float64 {
		t.Fatal("scorer must not run for invalid options")
		return 0
	}), nil)

	cases := []struct {
		name  string
		mut   func(*Options)
		field string
	}{
		{"min above max", func(o *Options) { o.SimilarityMin, o.SimilarityMax = 0.8, 0.2 }, "similarity_max"},
		{"min below zero", func(o *Options) { o.SimilarityMin = -0.1 }, "similarity_min"},
		{"max above one", func(o *Options) { o.SimilarityMax = 1.5 }, "similarity_max"},
		{"zero top k", func(o *Options) { o.TopK = 0 }, "top_k"},
		{"unknown output", func(o *Options) { o.OutputType = "paragraph" }, "output_type"},
		{"negative tolerance", func(o *Options) { o.WindowTolerance = -1 }, "window_tolerance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mut(&opts)
			resp, err := svc.Search(context.Background(), helloTranscript(t), "hello", opts)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestSearchOutputModes(t *testing.T) {
	svc := NewService(nil, nil)
	tr := helloTranscript(t)

	utt := DefaultOptions()
	utt.OutputType = OutputUtterance
	ts := DefaultOptions()
	ts.OutputType = OutputTimestamp

	a, err := svc.Search(context.Background(), tr, "how are", utt)
	require.NoError(t, err)
	b, err := svc.Search(context.Background(), tr, "how are", ts)
	require.NoError(t, err)
	require.NotEmpty(t, a.Results)
	require.Len(t, b.Results, len(a.Results))

	ur, ok := a.Results[0].(UtteranceResult)
	require.True(t, ok)
	tw, ok := b.Results[0].(TimestampResult)
	require.True(t, ok)
	assert.Equal(t, ur.MatchedText, tw.MatchedText)
	assert.Equal(t, ur.SimilarityScore, tw.SimilarityScore)
	assert.Equal(t, ur.TimeSpan, tw.TimeWindow)
	assert.Equal(t, OutputUtterance, ur.Kind())
	assert.Equal(t, OutputTimestamp, tw.Kind())

	var ujson, tjson map[string]any
	raw, err := json.Marshal(ur)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &ujson))
	raw, err = json.Marshal(tw)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &tjson))

	assert.Contains(t, ujson, "time_span")
	assert.Contains(t, ujson, "utterance_number")
	assert.NotContains(t, ujson, "time_window")
	assert.Contains(t, tjson, "time_window")
	assert.NotContains(t, tjson, "utterance_number")
	assert.NotContains(t, tjson, "time_span")
	assert.Equal(t, "hello world how are you", tjson["full_segment_text"])
}

func TestSearchAttributesToFirstWordUtterance(t *testing.T) {
	words := []Word{
		{Text: "hello", Start: 0, End: 0.5},
		{Text: "world.", Start: 0.5, End: 1.0},
		{Text: "How", Start: 1.2, End: 1.4},
		{Text: "are", Start: 1.4, End: 1.6},
		{Text: "you?", Start: 1.6, End: 2.0},
	}
	utts := []Utterance{
		{ID: 0, Speaker: "SPEAKER_00", Start: 0, End: 1.0, Text: "Hello world.", WordIDs: []int{0, 1}},
		{ID: 1, Speaker: "SPEAKER_01", Start: 1.2, End: 2.0, Text: "How are you?", WordIDs: []int{2, 3, 4}},
	}
	tr, err := NewTranscript(words, utts, nil)
	require.NoError(t, err)

	resp, err := NewService(nil, nil).Search(context.Background(), tr, "world how", DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	res := resp.Results[0].(UtteranceResult)
	assert.Equal(t, "world. How", res.MatchedText)
	assert.Equal(t, 1.0, res.SimilarityScore)
	assert.Equal(t, 0, res.UtteranceNumber)
	assert.Equal(t, "SPEAKER_00", res.Speaker)
	assert.Equal(t, "Hello world.", res.FullSegmentText)
	assert.Equal(t, 0.5, res.TimeSpan.Start)
	assert.Equal(t, 1.4, res.TimeSpan.End)
	assert.Equal(t, 1, res.MatchIndices.UtteranceStart)
	assert.Equal(t, 2, res.MatchIndices.UtteranceEnd)
}

func TestSearchProperties(t *testing.T) {
	tr := evenlySpaced(t,
		"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog",
		"and", "the", "quick", "red", "fox", "naps", "under", "the", "brown", "tree",
	)
	svc := NewService(nil, nil)
	ctx := context.Background()

	t.Run("exact substrings score one", func(t *testing.T) {
		for _, q := range []string{"quick brown", "lazy dog", "the quick red fox", "naps"} {
			resp, err := svc.Search(ctx, tr, q, DefaultOptions())
			require.NoError(t, err)
			require.NotEmpty(t, resp.Results, q)
			assert.Equal(t, 1.0, resp.Results[0].Common().SimilarityScore, q)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		opts := DefaultOptions()
		opts.TopK = 50
		first, err := svc.Search(ctx, tr, "the quick fox", opts)
		require.NoError(t, err)
		second, err := svc.Search(ctx, tr, "the quick fox", opts)
		require.NoError(t, err)
		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})

	t.Run("bounded by top k and range", func(t *testing.T) {
		for _, k := range []int{1, 2, 3, 100} {
			opts := DefaultOptions()
			opts.TopK = k
			opts.SimilarityMin = 0.2
			opts.SimilarityMax = 0.9
			resp, err := svc.Search(ctx, tr, "the brown fox", opts)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(resp.Results), k)
			for _, r := range resp.Results {
				score := r.Common().SimilarityScore
				assert.GreaterOrEqual(t, score, 0.2)
				assert.LessOrEqual(t, score, 0.9)
			}
		}
	})

	t.Run("no duplicate overlaps", func(t *testing.T) {
		opts := DefaultOptions()
		opts.TopK = 100
		resp, err := svc.Search(ctx, tr, "the quick brown", opts)
		require.NoError(t, err)
		for i := range resp.Results {
			for j := i + 1; j < len(resp.Results); j++ {
				a := resp.Results[i].Common().MatchIndices
				b := resp.Results[j].Common().MatchIndices
				assert.False(t, isDuplicate(Span{Start: a.Start, End: a.End}, Span{Start: b.Start, End: b.End}),
					"results %d and %d overlap", i, j)
			}
		}
	})

	t.Run("ordered by score then time", func(t *testing.T) {
		opts := DefaultOptions()
		opts.TopK = 100
		resp, err := svc.Search(ctx, tr, "the quick", opts)
		require.NoError(t, err)
		for i := 1; i < len(resp.Results); i++ {
			prev, cur := resp.Results[i-1], resp.Results[i]
			if prev.Common().SimilarityScore == cur.Common().SimilarityScore {
				assert.LessOrEqual(t, prev.Window().Start, cur.Window().Start)
				continue
			}
			assert.Greater(t, prev.Common().SimilarityScore, cur.Common().SimilarityScore)
		}
	})

	t.Run("tolerance is monotonic", func(t *testing.T) {
		best := 0.0
		for tol := 0; tol <= 4; tol++ {
			opts := DefaultOptions()
			opts.WindowTolerance = tol
			resp, err := svc.Search(ctx, tr, "quick brwn fx jumped", opts)
			require.NoError(t, err)
			require.NotEmpty(t, resp.Results)
			score := resp.Results[0].Common().SimilarityScore
			assert.GreaterOrEqual(t, score, best, "tolerance %d", tol)
			best = score
		}
	})
}

func TestSearchCustomScorer(t *testing.T) {
	var calls int
	constant := ScorerFunc(func(_, _ []string) float64 {
		calls++
		return 0.5
	})
	opts := DefaultOptions()
	opts.TopK = 100
	resp, err := NewService(constant, nil).Search(context.Background(), evenlySpaced(t, "a", "b", "c", "d"), "x y", opts)
	require.NoError(t, err)
	assert.Positive(t, calls)
	for _, r := range resp.Results {
		assert.Equal(t, 0.5, r.Common().SimilarityScore)
	}
	// Equal scores resolve to shorter spans first, then earliest start.
	require.NotEmpty(t, resp.Results)
	first := resp.Results[0].Common().MatchIndices
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, 0, first.End)
}

func TestSearchNearMissNeverScoresOne(t *testing.T) {
	nearMiss := ScorerFunc(func(query, span []string) float64 {
		if len(span) == len(query) {
			return 0.99967
		}
		return 0.2
	})
	opts := DefaultOptions()
	opts.SimilarityMin = 1
	resp, err := NewService(nearMiss, nil).Search(context.Background(), helloTranscript(t), "hello world", opts)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	opts.SimilarityMin = 0.9
	resp, err = NewService(nearMiss, nil).Search(context.Background(), helloTranscript(t), "hello world", opts)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, 0.999, r.Common().SimilarityScore)
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewService(nil, nil).Search(ctx, helloTranscript(t), "hello", DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchBatch(t *testing.T) {
	svc := NewService(nil, zaptest.NewLogger(t))
	tr := helloTranscript(t)
	bad := DefaultOptions()
	bad.TopK = 0
	jobs := []BatchJob{
		{Transcript: tr, Query: "hello world", Options: searchOpts(0.5)},
		{Transcript: tr, Query: "how are you", Options: DefaultOptions()},
		{Transcript: tr, Query: "hello", Options: bad},
		{Transcript: tr, Query: "", Options: DefaultOptions()},
	}
	results, err := svc.SearchBatch(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	require.NoError(t, results[0].Err)
	assert.Equal(t, "hello world", results[0].Response.Results[0].Common().MatchedText)
	require.NoError(t, results[1].Err)
	assert.Equal(t, "how are you", results[1].Response.Results[0].Common().MatchedText)
	assert.ErrorIs(t, results[2].Err, ErrInvalidConfig)
	assert.Nil(t, results[2].Response)
	require.NoError(t, results[3].Err)
	assert.Empty(t, results[3].Response.Results)
}

func TestSearchBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := []BatchJob{{Transcript: helloTranscript(t), Query: "hello", Options: DefaultOptions()}}
	_, err := NewService(nil, nil).SearchBatch(ctx, jobs, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
