package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BeckettFrey/speech-diarizer/internal/config"
	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

const talkCSV = `type,speaker,start,end,text,word,word_position,confidence
segment,SPEAKER_01,0.0,1.72,Hello world.,,,0.8
word,SPEAKER_01,0.0,0.5,Hello world.,Hello,0,0.95
word,SPEAKER_01,0.5,1.72,Hello world.,world.,1,0.98
segment,SPEAKER_01,2.0,3.5,How are you?,,,0.85
word,SPEAKER_01,2.0,2.3,How are you?,How,0,0.92
word,SPEAKER_01,2.3,2.6,How are you?,are,1,0.96
word,SPEAKER_01,2.6,3.5,How are you?,you?,2,0.94
segment,SPEAKER_00,4.0,5.0,Good.,,,0.9
word,SPEAKER_00,4.0,5.0,Good.,Good.,0,0.99
`

type envelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Info    string            `json:"info"`
	Details map[string]string `json:"details"`
	Data    json.RawMessage   `json:"data"`
}

func newTestServer(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk.csv"), []byte(talkCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk_metadata.json"), []byte(`{"language": "en", "duration": 5}`), 0o644))
	cfg := &config.Config{
		Environment:    "test",
		DataDir:        dir,
		AllowedOrigins: []string{"*"},
		BodyLimit:      "1M",
		BatchLimit:     2,
		RequestTimeout: 5 * time.Second,
	}
	logger := zaptest.NewLogger(t)
	svc := speechmine.NewService(nil, logger)
	return New(cfg, svc, speechmine.DefaultOptions(), logger), dir
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "environment": "test"}`, rec.Body.String())
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}

func TestSearchByPath(t *testing.T) {
	e, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/search",
		strings.NewReader(`{"query": "how are you", "transcript_path": "talk.csv", "options": {"similarity_min": 0.9}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "OK", env.Code)
	data := decodeData(t, env)
	assert.Equal(t, 1.0, data["total_matches"])
	assert.Equal(t, "en", data["transcript_info"].(map[string]any)["language"])
	assert.Equal(t, 10.0, data["search_parameters"].(map[string]any)["top_k"])

	first := data["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "How are you?", first["matched_text"])
	assert.Equal(t, 1.0, first["similarity_score"])
	assert.Equal(t, 1.0, first["utterance_number"])
}

func TestSearchInlineTimestampMode(t *testing.T) {
	e, _ := newTestServer(t)
	body, err := json.Marshal(map[string]any{
		"query":          "hello world",
		"transcript_csv": talkCSV,
		"options":        map[string]any{"output_type": "timestamp", "top_k": 1},
	})
	require.NoError(t, err)

	rec, env := do(t, e, http.MethodPost, "/v1/search", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, env)
	results := data["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Contains(t, first, "time_window")
	assert.NotContains(t, first, "utterance_number")
}

func TestSearchRejectsRequests(t *testing.T) {
	e, _ := newTestServer(t)
	cases := []struct {
		name   string
		body   string
		status int
		code   string
		detail [2]string
	}{
		{"parent directory", `{"query": "x", "transcript_path": "../talk.csv"}`, http.StatusForbidden, "FORBIDDEN", [2]string{"transcript_path", "../talk.csv"}},
		{"absolute path", `{"query": "x", "transcript_path": "/etc/passwd"}`, http.StatusForbidden, "FORBIDDEN", [2]string{}},
		{"missing file", `{"query": "x", "transcript_path": "nope.csv"}`, http.StatusNotFound, "NOT_FOUND", [2]string{"transcript_path", "nope.csv"}},
		{"invalid option", `{"query": "x", "transcript_path": "talk.csv", "options": {"top_k": 0}}`, http.StatusBadRequest, "INVALID_OPTIONS", [2]string{"field", "top_k"}},
		{"unknown option", `{"query": "x", "transcript_path": "talk.csv", "options": {"limit": 3}}`, http.StatusBadRequest, "INVALID_OPTIONS", [2]string{}},
		{"no transcript", `{"query": "x"}`, http.StatusBadRequest, "INVALID_ARGUMENT", [2]string{"transcript_path", "required_without"}},
		{"two transcripts", `{"query": "x", "transcript_path": "talk.csv", "transcript_csv": "start,end,word"}`, http.StatusBadRequest, "INVALID_ARGUMENT", [2]string{"transcript_path", "excluded_with"}},
		{"malformed json", `{"query": `, http.StatusBadRequest, "INVALID_PAYLOAD", [2]string{}},
		{"broken transcript", `{"query": "x", "transcript_csv": "start,end,word\n1,2,a\n0,1,b\n"}`, http.StatusUnprocessableEntity, "INVALID_TRANSCRIPT", [2]string{"word", "1"}},
		{"bad csv row", `{"query": "x", "transcript_csv": "start,end,word\nsoon,2,a\n"}`, http.StatusUnprocessableEntity, "INVALID_TRANSCRIPT", [2]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, e, http.MethodPost, "/v1/search", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, env.Code)
			if tc.detail[0] != "" {
				assert.Equal(t, tc.detail[1], env.Details[tc.detail[0]])
			}
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	e, _ := newTestServer(t)
	for _, body := range []string{
		`{"query": "", "transcript_path": "talk.csv"}`,
		`{"query": "  ?! ", "transcript_path": "talk.csv"}`,
		`{"transcript_path": "talk.csv"}`,
	} {
		rec, env := do(t, e, http.MethodPost, "/v1/search", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decodeData(t, env)
		assert.Equal(t, 0.0, data["total_matches"])
		assert.Empty(t, data["results"])
	}
}

func TestSearchBatch(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodPost, "/v1/search/batch",
		`{"queries": ["hello world", "good"], "transcript_path": "talk.csv", "options": {"similarity_min": 0.9}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Results []struct {
			Query    string         `json:"query"`
			Response map[string]any `json:"response"`
			Error    string         `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Results, 2)
	assert.Equal(t, "hello world", data.Results[0].Query)
	assert.Equal(t, "good", data.Results[1].Query)
	assert.Empty(t, data.Results[0].Error)
	assert.Equal(t, 1.0, data.Results[0].Response["total_matches"])

	rec, env = do(t, e, http.MethodPost, "/v1/search/batch", `{"queries": ["hello", ""], "transcript_path": "talk.csv"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data.Results = nil
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Results, 2)
	assert.Empty(t, data.Results[1].Error)
	assert.Equal(t, 0.0, data.Results[1].Response["total_matches"])

	rec, env = do(t, e, http.MethodPost, "/v1/search/batch", `{"queries": [], "transcript_path": "talk.csv"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "min", env.Details["queries"])
}

func TestTranscriptStats(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodPost, "/v1/transcripts/stats", `{"transcript_path": "talk.csv"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, env)
	assert.Equal(t, 6.0, data["total_words"])
	assert.Equal(t, 3.0, data["total_utterances"])
	assert.Equal(t, []any{"SPEAKER_00", "SPEAKER_01"}, data["speakers"])
}

func TestUnknownRoute(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(t, e, http.MethodGet, "/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}
