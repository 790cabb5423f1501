package app

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"deepdive/internal/deepdive"
	"deepdive/internal/extract"
	"deepdive/internal/llm"
	"deepdive/internal/normalize"
)

const (
	// maxArticleChars bounds the article payload accepted by /analyze.
	maxArticleChars = 500000
	// maxConcepts bounds the optional concept hint list.
	maxConcepts = 20
	// maxBodyBytes bounds request bodies read off the wire. Raw HTML
	// documents on /deepdive can be large.
	maxBodyBytes = 8 << 20
)

type analyzeRequest struct {
	Article  string   `json:"article"`
	Concepts []string `json:"concepts"`
}

type searchRequest struct {
	SearchQuery string `json:"searchQuery"`
}

type deepDiveRequest struct {
	URL         string   `json:"url"`
	HTML        string   `json:"html"`
	SearchQuery string   `json:"searchQuery"`
	Concepts    []string `json:"concepts"`
}

// handleAnalyze runs the structured-analysis call for a caller-provided
// article and returns the normalized result.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	if !s.admit(w, r) {
		return
	}

	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Article == "" {
		writeError(w, http.StatusBadRequest, "article is required")
		return
	}
	if len(req.Article) > maxArticleChars {
		writeError(w, http.StatusRequestEntityTooLarge, "article exceeds %d characters", maxArticleChars)
		return
	}
	if len(req.Concepts) > maxConcepts {
		writeError(w, http.StatusBadRequest, "concepts exceeds %d entries", maxConcepts)
		return
	}
	for _, c := range req.Concepts {
		if c == "" {
			writeError(w, http.StatusBadRequest, "concepts entries must be non-empty strings")
			return
		}
	}

	resp, err := s.analyzer.Analyze(r.Context(), req.Article, req.Concepts)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	result := s.norm.Parse(resp.Text)
	// Related articles belong to the search call, not this one.
	result.RelatedArticles = nil
	writeJSON(w, http.StatusOK, result)
}

// handleSearch returns related articles for a search query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SearchQuery == "" {
		writeError(w, http.StatusBadRequest, "searchQuery is required")
		return
	}

	articles, err := s.relatedProv.Related(r.Context(), req.SearchQuery)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	if articles == nil {
		articles = []normalize.RelatedArticle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

// handleDeepDive runs the whole pipeline server-side for a page URL or a raw
// HTML document.
func (s *Server) handleDeepDive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	// Deep dives consume the same upstream quota as direct analysis calls.
	if !s.admit(w, r) {
		return
	}

	var req deepDiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" && req.HTML == "" {
		writeError(w, http.StatusBadRequest, "url or html is required")
		return
	}

	fetched := false
	result, err := s.orchestrator.Run(r.Context(), deepdive.Request{
		URL:      req.URL,
		HTML:     req.HTML,
		Query:    req.SearchQuery,
		Concepts: req.Concepts,
	}, deepdive.Hooks{
		OnState: func(st deepdive.State) {
			if st == deepdive.StateFetching {
				fetched = true
			}
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrNoContent):
			writeError(w, http.StatusBadRequest, "no usable article content on this page")
		case errors.Is(err, deepdive.ErrInProgress):
			writeError(w, http.StatusConflict, "analysis already in progress for this article")
		default:
			s.log.Error("Deep dive failed", zap.String("url", req.URL), zap.Error(err))
			s.writeUpstreamError(w, err)
		}
		return
	}

	if fetched {
		s.metrics.CacheMisses.Inc()
	} else {
		s.metrics.CacheHits.Inc()
	}
	if result.RelatedArticles == nil {
		result.RelatedArticles = []normalize.RelatedArticle{}
	}
	writeJSON(w, http.StatusOK, result)
}

// writeUpstreamError maps the remote-call error taxonomy onto response codes.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	var uerr *llm.Error
	if errors.As(err, &uerr) {
		switch uerr.Class {
		case llm.ClassRateLimit:
			if uerr.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(uerr.RetryAfter.Seconds())))
			}
			writeError(w, http.StatusTooManyRequests, "upstream rate limit exceeded")
		case llm.ClassValidation:
			// Upstream rejected our request shape; that is a bug here, not
			// a caller problem.
			writeError(w, http.StatusInternalServerError, "upstream rejected the analysis request")
		default:
			writeError(w, http.StatusBadGateway, "upstream analysis service unavailable")
		}
		return
	}
	writeError(w, http.StatusBadGateway, "upstream call failed")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
