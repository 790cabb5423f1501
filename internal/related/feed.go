package related

import (
	"context"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"deepdive/internal/normalize"
)

// FeedProvider matches the query against item titles from configured RSS or
// Atom feeds. Feeds that fail to parse are skipped, not fatal.
type FeedProvider struct {
	parser *gofeed.Parser
	feeds  []string
	max    int
	log    *zap.Logger
}

// NewFeedProvider creates a FeedProvider over the given feed URLs.
func NewFeedProvider(feeds []string, max int, log *zap.Logger) *FeedProvider {
	p := gofeed.NewParser()
	p.UserAgent = "Mozilla/5.0 (compatible; DeepDiveBot/1.0)"
	return &FeedProvider{parser: p, feeds: feeds, max: max, log: log}
}

type scoredItem struct {
	article normalize.RelatedArticle
	score   int
}

func (p *FeedProvider) Related(ctx context.Context, query string) ([]normalize.RelatedArticle, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var scored []scoredItem
	for _, feedURL := range p.feeds {
		feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			p.log.Warn("Skipping feed", zap.String("url", feedURL), zap.Error(err))
			continue
		}
		for _, item := range feed.Items {
			if item.Link == "" || item.Title == "" {
				continue
			}
			if s := overlap(terms, item.Title); s > 0 {
				scored = append(scored, scoredItem{
					article: normalize.RelatedArticle{Title: item.Title, URL: item.Link},
					score:   s,
				})
			}
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var out []normalize.RelatedArticle
	seen := make(map[string]struct{})
	for _, s := range scored {
		if _, dup := seen[s.article.URL]; dup {
			continue
		}
		seen[s.article.URL] = struct{}{}
		out = append(out, s.article)
		if len(out) == p.max {
			break
		}
	}
	return out, nil
}

func queryTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		// single-character terms match too much to be useful
		if len(t) > 2 {
			terms = append(terms, t)
		}
	}
	return terms
}

func overlap(terms []string, title string) int {
	lower := strings.ToLower(title)
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}
