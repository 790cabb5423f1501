package related

import (
	"context"

	"go.uber.org/zap"

	"deepdive/internal/grounding"
	"deepdive/internal/llm"
	"deepdive/internal/normalize"
)

// SearchProvider asks the model for related sources. Grounding metadata is
// preferred over URLs parsed from the free-text answer; the latter is only a
// last resort.
type SearchProvider struct {
	searcher  llm.Searcher
	grounding *grounding.Extractor
	norm      *normalize.Normalizer
	log       *zap.Logger
}

// NewSearchProvider wires a searcher to the grounding extractor and
// normalizer.
func NewSearchProvider(s llm.Searcher, g *grounding.Extractor, n *normalize.Normalizer, log *zap.Logger) *SearchProvider {
	return &SearchProvider{searcher: s, grounding: g, norm: n, log: log}
}

func (p *SearchProvider) Related(ctx context.Context, query string) ([]normalize.RelatedArticle, error) {
	resp, err := p.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if articles := p.grounding.Extract(resp.Grounding); len(articles) > 0 {
		return p.norm.FilterRelated(articles), nil
	}

	p.log.Debug("No grounding sources, falling back to free-text URLs",
		zap.String("query", query))
	return p.norm.Parse(resp.Text).RelatedArticles, nil
}
