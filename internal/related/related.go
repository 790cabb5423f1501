// Package related finds source articles relevant to a search query. The
// primary provider rides the model's grounded search; a feed-backed provider
// serves as an offline fallback.
package related

import (
	"context"

	"deepdive/internal/normalize"
)

// Provider returns related articles for a query.
type Provider interface {
	Related(ctx context.Context, query string) ([]normalize.RelatedArticle, error)
}

// Empty is a Provider that always returns no articles, for deployments with
// no searcher and no feeds configured.
type Empty struct{}

func (Empty) Related(context.Context, string) ([]normalize.RelatedArticle, error) {
	return nil, nil
}
