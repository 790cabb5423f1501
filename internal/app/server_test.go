package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deepdive/internal/config"
	"deepdive/internal/deepdive"
	"deepdive/internal/extract"
	"deepdive/internal/fingerprint"
	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/normalize"
	"deepdive/internal/ratelimit"
	"deepdive/internal/related"
)

type fakeAnalyzer struct {
	calls int
	text  string
	err   error
}

func (f *fakeAnalyzer) Analyze(context.Context, string, []string) (*llm.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text}, nil
}

const analysisReply = "```json\n" +
	`{"definitions":[],"arguments":{"main":["x"],"counter":[]}}` + "\n```"

func newTestServer(analyzer llm.Analyzer, maxRequests int) *Server {
	log := zap.NewNop()
	norm := normalize.New(normalize.DefaultPolicy())
	store := fingerprint.NewMemoryStore()
	scorer := extract.NewScorer(extract.DefaultConfig(), log)
	fetcher := extract.NewFetcher(scorer, nil, "test-agent")
	provider := related.Empty{}

	s := &Server{
		cfg: &config.Config{
			RateLimit: config.RateLimitConfig{MaxRequests: maxRequests, Window: time.Minute},
		},
		log:          log,
		store:        store,
		limiter:      ratelimit.New(maxRequests, time.Minute),
		norm:         norm,
		analyzer:     analyzer,
		relatedProv:  provider,
		orchestrator: deepdive.New(scorer, fetcher, analyzer, norm, provider, store, time.Hour, log),
		metrics:      metrics.New(),
		mux:          http.NewServeMux(),
		shutdown:     make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

func doJSON(s *Server, method, path, origin, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 100)

	rec := doJSON(s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestAnalyzeHappyPath(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 100)

	rec := doJSON(s, http.MethodPost, "/analyze", "https://client.app",
		`{"article":"some article text","concepts":["caching"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res normalize.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"x"}, res.Arguments.Main)
	assert.Empty(t, res.Definitions)
}

func TestAnalyzeValidation(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 100)

	cases := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{not json", http.StatusBadRequest},
		{"missing article", http.MethodPost, `{"concepts":["a"]}`, http.StatusBadRequest},
		{"oversize article", http.MethodPost,
			`{"article":"` + strings.Repeat("a", maxArticleChars+1) + `"}`,
			http.StatusRequestEntityTooLarge},
		{"too many concepts", http.MethodPost,
			`{"article":"ok text","concepts":[` + strings.Repeat(`"c",`, maxConcepts) + `"c"]}`,
			http.StatusBadRequest},
		{"non-string concept", http.MethodPost, `{"article":"ok text","concepts":[42]}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(s, tc.method, "/analyze", "https://validation.test", tc.body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 2)

	body := `{"article":"some article text"}`
	for i := 0; i < 2; i++ {
		rec := doJSON(s, http.MethodPost, "/analyze", "https://busy.app", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(s, http.MethodPost, "/analyze", "https://busy.app", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// A different origin still has budget.
	rec = doJSON(s, http.MethodPost, "/analyze", "https://idle.app", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeUpstreamErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    *llm.Error
		status int
	}{
		{"server", &llm.Error{Class: llm.ClassServer, Status: 500}, http.StatusBadGateway},
		{"network", &llm.Error{Class: llm.ClassNetwork}, http.StatusBadGateway},
		{"rate limit", &llm.Error{Class: llm.ClassRateLimit, Status: 429, RetryAfter: 5 * time.Second}, http.StatusTooManyRequests},
		{"validation", &llm.Error{Class: llm.ClassValidation, Status: 400}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeAnalyzer{err: tc.err}, 100)
			rec := doJSON(s, http.MethodPost, "/analyze", "https://errors.test", `{"article":"text"}`)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestSearchValidation(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 100)

	rec := doJSON(s, http.MethodPost, "/search", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodPost, "/search", "", `{"searchQuery":"topic"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Articles []normalize.RelatedArticle `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Articles)
}

func articlePage() string {
	return "<html><head><title>T</title></head><body><article><h1>H</h1><p>" +
		strings.Repeat("A sentence of article body for the pipeline to chew on. ", 10) +
		"</p></article></body></html>"
}

func TestDeepDiveHappyPathAndCache(t *testing.T) {
	analyzer := &fakeAnalyzer{text: analysisReply}
	s := newTestServer(analyzer, 100)

	body, err := json.Marshal(map[string]string{
		"url":         "https://news.site/story",
		"html":        articlePage(),
		"searchQuery": "story topic",
	})
	require.NoError(t, err)

	rec := doJSON(s, http.MethodPost, "/deepdive", "https://client.app", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var res deepdive.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"x"}, res.Arguments.Main)
	assert.NotNil(t, res.RelatedArticles)

	// Same article again: served from cache, no second upstream call.
	rec = doJSON(s, http.MethodPost, "/deepdive", "https://client.app", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, analyzer.calls)
}

func TestDeepDiveValidation(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 100)

	rec := doJSON(s, http.MethodPost, "/deepdive", "https://client.app", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noContent, _ := json.Marshal(map[string]string{
		"url":  "https://news.site/x",
		"html": "<html><body>tiny</body></html>",
	})
	rec = doJSON(s, http.MethodPost, "/deepdive", "https://client.app", string(noContent))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no usable article content")
}

func TestRequestIDAndCommonHeaders(t *testing.T) {
	s := newTestServer(&fakeAnalyzer{text: analysisReply}, 100)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.withCommonHeaders(s.withRequestID(s.mux)).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "deepdive", rec.Header().Get("Server"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
