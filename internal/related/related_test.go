package related

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deepdive/internal/grounding"
	"deepdive/internal/llm"
	"deepdive/internal/normalize"
)

type fakeSearcher struct {
	resp *llm.Response
	err  error
}

func (f *fakeSearcher) Search(context.Context, string) (*llm.Response, error) {
	return f.resp, f.err
}

func newSearchProvider(s llm.Searcher) *SearchProvider {
	return NewSearchProvider(
		s,
		grounding.New(grounding.DefaultShape(), 10),
		normalize.New(normalize.DefaultPolicy()),
		zap.NewNop(),
	)
}

func TestGroundingTakesPrecedenceOverFreeText(t *testing.T) {
	p := newSearchProvider(&fakeSearcher{resp: &llm.Response{
		Text: `{"relatedArticles":[{"title":"free text","url":"https://freetext.site/a"}]}`,
		Grounding: [][]llm.GroundingChunk{{
			{Title: "grounded", URI: "https://grounded.site/a"},
		}},
	}})

	out, err := p.Related(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://grounded.site/a", out[0].URL)
}

func TestFreeTextFallbackWhenNoGrounding(t *testing.T) {
	p := newSearchProvider(&fakeSearcher{resp: &llm.Response{
		Text: `{"relatedArticles":[{"title":"free text","url":"https://freetext.site/a"}]}`,
	}})

	out, err := p.Related(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://freetext.site/a", out[0].URL)
}

func TestSearchErrorPropagates(t *testing.T) {
	p := newSearchProvider(&fakeSearcher{err: &llm.Error{Class: llm.ClassServer, Status: 500}})

	_, err := p.Related(context.Background(), "query")
	assert.Error(t, err)
}

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Tech Feed</title>
<item><title>Understanding goroutine schedulers</title><link>https://feed.site/goroutines</link></item>
<item><title>Perfecting sourdough at home</title><link>https://feed.site/sourdough</link></item>
<item><title>Scheduler internals, part two</title><link>https://feed.site/sched2</link></item>
</channel></rss>`

func TestFeedProviderMatchesQueryTerms(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer ts.Close()

	p := NewFeedProvider([]string{ts.URL}, 10, zap.NewNop())
	out, err := p.Related(context.Background(), "goroutine scheduler internals")
	require.NoError(t, err)

	require.Len(t, out, 2)
	for _, a := range out {
		assert.NotContains(t, a.Title, "sourdough")
	}
}

func TestFeedProviderEmptyQuery(t *testing.T) {
	p := NewFeedProvider([]string{"http://127.0.0.1:1/feed"}, 10, zap.NewNop())

	out, err := p.Related(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFeedProviderSkipsBrokenFeeds(t *testing.T) {
	p := NewFeedProvider([]string{"http://127.0.0.1:1/feed"}, 10, zap.NewNop())

	out, err := p.Related(context.Background(), "anything relevant")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQueryTermsDropShortTokens(t *testing.T) {
	terms := queryTerms("go is a neat language")
	assert.Equal(t, []string{"neat", "language"}, terms)
}
