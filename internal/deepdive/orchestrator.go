// Package deepdive coordinates the full analysis pipeline for one article:
// extraction, cache check, two concurrent remote calls, and the reconciled
// cache write.
package deepdive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deepdive/internal/extract"
	"deepdive/internal/fingerprint"
	"deepdive/internal/llm"
	"deepdive/internal/normalize"
	"deepdive/internal/related"
)

// State tracks where an invocation is in the pipeline.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateCacheCheck
	StateFetching
	StateReconciling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateCacheCheck:
		return "cache-check"
	case StateFetching:
		return "fetching"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrInProgress rejects an invocation that overlaps an outstanding one for
// the same fingerprint. Callers are expected to block rather than race.
var ErrInProgress = errors.New("deep dive already in progress for this article")

// Request describes one deep-dive invocation. Exactly one of URL or HTML
// must be set. Query is the pre-derived search query for the related-source
// leg; it may be empty, in which case no remote search is issued.
type Request struct {
	URL      string
	HTML     string
	Query    string
	Concepts []string
}

// Result is the reconciled union of the two remote calls for one
// fingerprint. It is written to the cache only after both calls settle.
type Result struct {
	RelatedArticles []normalize.RelatedArticle `json:"relatedArticles"`
	Definitions     []normalize.Definition     `json:"definitions"`
	Arguments       normalize.Arguments        `json:"arguments"`
}

// Hooks receive per-leg results as they settle, in settle order. Either hook
// may be nil. OnAnalysis and OnRelated fire independently so whichever leg
// finishes first renders first.
type Hooks struct {
	OnState    func(State)
	OnAnalysis func(normalize.AnalysisResult)
	OnRelated  func([]normalize.RelatedArticle)
}

func (h Hooks) state(s State) {
	if h.OnState != nil {
		h.OnState(s)
	}
}

// Orchestrator runs deep-dive invocations against injected collaborators.
type Orchestrator struct {
	scorer   *extract.Scorer
	fetcher  *extract.Fetcher
	analyzer llm.Analyzer
	norm     *normalize.Normalizer
	related  related.Provider
	store    fingerprint.Store
	ttl      time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an Orchestrator.
func New(scorer *extract.Scorer, fetcher *extract.Fetcher, analyzer llm.Analyzer,
	norm *normalize.Normalizer, rel related.Provider, store fingerprint.Store,
	ttl time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		scorer:   scorer,
		fetcher:  fetcher,
		analyzer: analyzer,
		norm:     norm,
		related:  rel,
		store:    store,
		ttl:      ttl,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

type analysisOut struct {
	result normalize.AnalysisResult
	err    error
}

type relatedOut struct {
	articles []normalize.RelatedArticle
	err      error
}

// Run executes one deep-dive invocation. A cache hit returns without issuing
// any remote call. On a miss the analysis and search legs run concurrently;
// analysis failure is fatal, search failure degrades to an empty list. The
// combined result is cached only after both legs have settled.
func (o *Orchestrator) Run(ctx context.Context, req Request, hooks Hooks) (*Result, error) {
	hooks.state(StateExtracting)
	snap, err := o.snapshot(ctx, req)
	if err != nil {
		hooks.state(StateFailed)
		return nil, err
	}

	key := fingerprint.KeyWithKind(snap.URL, snap.Text, fingerprint.KindDeepDive)

	hooks.state(StateCacheCheck)
	if cached, ok := o.lookup(ctx, key); ok {
		hooks.state(StateDone)
		o.render(cached, hooks)
		return cached, nil
	}

	if err := o.acquire(key); err != nil {
		return nil, err
	}
	defer o.release(key)

	hooks.state(StateFetching)
	analysisCh := make(chan analysisOut, 1)
	relatedCh := make(chan relatedOut, 1)

	go func() {
		resp, err := o.analyzer.Analyze(ctx, snap.Text, req.Concepts)
		if err != nil {
			analysisCh <- analysisOut{err: err}
			return
		}
		analysisCh <- analysisOut{result: o.norm.Parse(resp.Text)}
	}()

	go func() {
		if req.Query == "" {
			relatedCh <- relatedOut{}
			return
		}
		articles, err := o.related.Related(ctx, req.Query)
		relatedCh <- relatedOut{articles: articles, err: err}
	}()

	// Each leg renders as it settles; no ordering between the two.
	var analysis analysisOut
	var rel relatedOut
	for pending := 2; pending > 0; pending-- {
		select {
		case analysis = <-analysisCh:
			analysisCh = nil
			if analysis.err == nil && hooks.OnAnalysis != nil {
				hooks.OnAnalysis(analysis.result)
			}
		case rel = <-relatedCh:
			relatedCh = nil
			if rel.err == nil && hooks.OnRelated != nil {
				hooks.OnRelated(rel.articles)
			}
		}
	}

	if analysis.err != nil {
		hooks.state(StateFailed)
		return nil, fmt.Errorf("analysis call failed: %w", analysis.err)
	}
	if rel.err != nil {
		// Related sources are useful but not essential; degrade to none.
		o.log.Warn("Related-source search failed", zap.String("url", snap.URL), zap.Error(rel.err))
		rel.articles = nil
		if hooks.OnRelated != nil {
			hooks.OnRelated(nil)
		}
	}

	hooks.state(StateReconciling)
	result := &Result{
		RelatedArticles: rel.articles,
		Definitions:     analysis.result.Definitions,
		Arguments:       analysis.result.Arguments,
	}
	o.commit(ctx, key, result)

	hooks.state(StateDone)
	return result, nil
}

func (o *Orchestrator) snapshot(ctx context.Context, req Request) (*extract.Snapshot, error) {
	switch {
	case req.HTML != "":
		return o.scorer.FromHTML(req.HTML, req.URL)
	case req.URL != "":
		return o.fetcher.FromURL(ctx, req.URL)
	default:
		return nil, errors.New("request needs a url or html document")
	}
}

func (o *Orchestrator) lookup(ctx context.Context, key string) (*Result, bool) {
	raw, ok, err := o.store.Get(ctx, key)
	if err != nil {
		o.log.Warn("Cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		o.log.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	o.log.Debug("Deep dive served from cache", zap.String("key", key))
	return &result, true
}

func (o *Orchestrator) render(result *Result, hooks Hooks) {
	if hooks.OnAnalysis != nil {
		hooks.OnAnalysis(normalize.AnalysisResult{
			Definitions: result.Definitions,
			Arguments:   result.Arguments,
		})
	}
	if hooks.OnRelated != nil {
		hooks.OnRelated(result.RelatedArticles)
	}
}

func (o *Orchestrator) commit(ctx context.Context, key string, result *Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		o.log.Warn("Encoding result for cache failed", zap.Error(err))
		return
	}
	if err := o.store.Set(ctx, key, raw, o.ttl); err != nil {
		o.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (o *Orchestrator) acquire(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return ErrInProgress
	}
	o.inflight[key] = struct{}{}
	return nil
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	delete(o.inflight, key)
	o.mu.Unlock()
}
