package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"deepdive/internal/config"
	"deepdive/internal/deepdive"
	"deepdive/internal/extract"
	"deepdive/internal/fingerprint"
	"deepdive/internal/grounding"
	"deepdive/internal/llm"
	"deepdive/internal/metrics"
	"deepdive/internal/normalize"
	"deepdive/internal/ratelimit"
	"deepdive/internal/related"
)

// Server is the application server. All collaborators are constructor-built
// and injected; there is no package-level shared state.
type Server struct {
	cfg *config.Config
	log *zap.Logger

	store        fingerprint.Store
	limiter      *ratelimit.Limiter
	norm         *normalize.Normalizer
	analyzer     llm.Analyzer
	relatedProv  related.Provider
	orchestrator *deepdive.Orchestrator
	metrics      *metrics.Metrics

	mux      *http.ServeMux
	shutdown chan struct{}
}

// NewServer wires the pipeline from config.
func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	norm := normalize.New(normalize.Policy{
		PlaceholderDomains: cfg.Policy.PlaceholderDomains,
		MaxRelated:         cfg.Policy.MaxRelated,
		MaxDefinitions:     cfg.Policy.MaxDefinitions,
		MaxArguments:       cfg.Policy.MaxArguments,
	})

	ground := grounding.New(grounding.Shape{
		HostSuffix: cfg.Policy.RedirectHostSuffix,
		PathPrefix: cfg.Policy.RedirectPathPrefix,
	}, cfg.Policy.MaxRelated)

	gemini := llm.NewGeminiClient(llm.GeminiOptions{
		Endpoint: cfg.Upstream.Endpoint,
		Model:    cfg.Upstream.Model,
		APIKey:   cfg.Upstream.APIKey,
		RetryMax: cfg.Upstream.RetryMax,
		Timeout:  cfg.Upstream.Timeout,
	}, log)

	// Page fetches ride the same retry policy as the teacher of this
	// codebase's upstream calls: transient failures retried, then give up.
	pageClient := retryablehttp.NewClient()
	pageClient.RetryMax = 2
	pageClient.HTTPClient.Timeout = cfg.Server.RequestTimeout
	pageClient.Logger = nil

	scorer := extract.NewScorer(extract.Config{
		MaxChars:  cfg.Extract.MaxChars,
		MinChars:  cfg.Extract.MinChars,
		UserAgent: cfg.Extract.UserAgent,
		Timeout:   cfg.Server.RequestTimeout,
	}, log)
	fetcher := extract.NewFetcher(scorer, pageClient.StandardClient(), cfg.Extract.UserAgent)

	var store fingerprint.Store
	if cfg.Cache.RedisAddr != "" {
		store = fingerprint.NewRedisStore(cfg.Cache.RedisAddr)
		log.Info("Using redis fingerprint store", zap.String("addr", cfg.Cache.RedisAddr))
	} else {
		store = fingerprint.NewMemoryStore()
	}

	var relatedProv related.Provider
	switch {
	case cfg.Upstream.APIKey != "":
		relatedProv = related.NewSearchProvider(gemini, ground, norm, log)
	case len(cfg.Related.Feeds) > 0:
		relatedProv = related.NewFeedProvider(cfg.Related.Feeds, cfg.Related.Max, log)
		log.Info("Using feed-backed related articles", zap.Int("feeds", len(cfg.Related.Feeds)))
	default:
		relatedProv = related.Empty{}
	}

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	limiter.StartSweep(cfg.RateLimit.SweepInterval)

	orch := deepdive.New(scorer, fetcher, gemini, norm, relatedProv, store, cfg.Cache.TTL, log)

	s := &Server{
		cfg:          cfg,
		log:          log,
		store:        store,
		limiter:      limiter,
		norm:         norm,
		analyzer:     gemini,
		relatedProv:  relatedProv,
		orchestrator: orch,
		metrics:      metrics.New(),
		mux:          http.NewServeMux(),
		shutdown:     make(chan struct{}),
	}

	s.registerRoutes()
	return s, nil
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	h := &http.Server{
		Addr:    addr,
		Handler: s.withCommonHeaders(s.withRequestID(s.mux)),
	}

	s.log.Info("Server listening", zap.String("addr", addr))
	if err := h.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close stops background workers.
func (s *Server) Close() {
	s.limiter.Stop()
	close(s.shutdown)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/analyze", s.instrument("analyze", s.handleAnalyze))
	s.mux.HandleFunc("/search", s.instrument("search", s.handleSearch))
	s.mux.HandleFunc("/deepdive", s.instrument("deepdive", s.handleDeepDive))
	s.mux.HandleFunc("/health", s.instrument("health", s.handleHealth))
	s.mux.Handle("/metrics", s.metrics.Handler())
}

// handleHealth returns JSON health information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "ok",
		"service":   "deepdive",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if sized, ok := s.store.(interface{ Size() int }); ok {
		health["cache_size"] = sized.Size()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
