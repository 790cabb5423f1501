// Package llm talks to the remote language-model service. It exposes the two
// calls the deep-dive pipeline needs behind small interfaces so tests and
// alternate providers can swap in.
package llm

import "context"

// GroundingChunk is one retrieved source from the model's grounding metadata.
// It reflects an actual retrieval step, unlike URLs in the free-text answer.
type GroundingChunk struct {
	Title string
	URI   string
}

// Response carries the model's free-text answer plus per-candidate grounding
// metadata.
type Response struct {
	Text string
	// Grounding holds the grounding chunks of each candidate, in candidate
	// order.
	Grounding [][]GroundingChunk
}

// Analyzer requests a structured content analysis of an article.
type Analyzer interface {
	Analyze(ctx context.Context, article string, concepts []string) (*Response, error)
}

// Searcher requests related sources for a search query.
type Searcher interface {
	Search(ctx context.Context, query string) (*Response, error)
}
