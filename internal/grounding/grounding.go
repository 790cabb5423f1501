// Package grounding extracts real source URLs from the model's citation
// metadata. These reflect an actual retrieval step, so they are authoritative
// over any URLs found in the free-text answer.
package grounding

import (
	"net/url"
	"strings"

	"deepdive/internal/llm"
	"deepdive/internal/normalize"
)

// Shape identifies the search-redirect URL form the grounding service emits.
// Redirect-shaped URLs are the most trustworthy tier: they are minted by the
// retrieval backend rather than echoed by the model.
type Shape struct {
	HostSuffix string
	PathPrefix string
}

// DefaultShape matches the vertex search redirect URLs.
func DefaultShape() Shape {
	return Shape{
		HostSuffix: "vertexaisearch.cloud.google.com",
		PathPrefix: "/grounding-api-redirect/",
	}
}

// Extractor pulls {title, url} pairs out of grounding metadata.
type Extractor struct {
	shape Shape
	max   int
}

// New creates an Extractor capping output at max articles.
func New(shape Shape, max int) *Extractor {
	return &Extractor{shape: shape, max: max}
}

// Extract returns the sources of the first candidate that yields any,
// redirect-shaped URLs first, deduplicated by URL and capped. An empty result
// means the caller should fall back to free-text URLs.
func (e *Extractor) Extract(candidates [][]llm.GroundingChunk) []normalize.RelatedArticle {
	for _, chunks := range candidates {
		if articles := e.fromChunks(chunks); len(articles) > 0 {
			return articles
		}
	}
	return nil
}

func (e *Extractor) fromChunks(chunks []llm.GroundingChunk) []normalize.RelatedArticle {
	var redirect, plain []normalize.RelatedArticle
	seen := make(map[string]struct{})

	for _, chunk := range chunks {
		uri := strings.TrimSpace(chunk.URI)
		if uri == "" {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}

		title := strings.TrimSpace(chunk.Title)
		if title == "" {
			title = uri
		}
		article := normalize.RelatedArticle{Title: title, URL: uri}

		if e.isRedirect(uri) {
			redirect = append(redirect, article)
		} else {
			plain = append(plain, article)
		}
	}

	out := append(redirect, plain...)
	if len(out) > e.max {
		out = out[:e.max]
	}
	return out
}

func (e *Extractor) isRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if e.shape.HostSuffix == "" || !strings.HasSuffix(host, e.shape.HostSuffix) {
		return false
	}
	return e.shape.PathPrefix == "" || strings.HasPrefix(u.Path, e.shape.PathPrefix)
}
