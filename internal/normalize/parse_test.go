package normalize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	return New(DefaultPolicy())
}

func TestParseNeverFails(t *testing.T) {
	n := newTestNormalizer()

	inputs := []string{
		"",
		"plain prose with no json at all",
		"{",
		"}{",
		"[1, 2, 3]",
		"```json\nnot json\n```",
		"null",
		`"just a string"`,
		strings.Repeat("x", 100000),
		"{\"definitions\": \"not a list\", \"arguments\": 42}",
	}

	for _, input := range inputs {
		res := n.Parse(input)
		assert.LessOrEqual(t, len(res.Definitions), 20)
		assert.LessOrEqual(t, len(res.Arguments.Main), 20)
		assert.LessOrEqual(t, len(res.Arguments.Counter), 20)
	}
}

func TestParseLabeledFence(t *testing.T) {
	n := newTestNormalizer()

	raw := "Sure! ```json\n{\"definitions\":[],\"arguments\":{\"main\":[\"x\"],\"counter\":[]}}\n```"
	res := n.Parse(raw)

	require.Len(t, res.Arguments.Main, 1)
	assert.Equal(t, "x", res.Arguments.Main[0])
	assert.Empty(t, res.Arguments.Counter)
	assert.Empty(t, res.Definitions)
}

func TestParseUnlabeledFence(t *testing.T) {
	n := newTestNormalizer()

	raw := "Here you go:\n```\n{\"arguments\":{\"main\":[\"a\"],\"counter\":[\"b\"]}}\n```"
	res := n.Parse(raw)

	require.Len(t, res.Arguments.Main, 1)
	assert.Equal(t, "a", res.Arguments.Main[0])
	require.Len(t, res.Arguments.Counter, 1)
	assert.Equal(t, "b", res.Arguments.Counter[0])
}

func TestParseBraceSpan(t *testing.T) {
	n := newTestNormalizer()

	raw := `The analysis follows. {"arguments":{"main":["embedded"],"counter":[]}} Hope that helps!`
	res := n.Parse(raw)

	require.Len(t, res.Arguments.Main, 1)
	assert.Equal(t, "embedded", res.Arguments.Main[0])
}

func TestParseWholeTextJSON(t *testing.T) {
	n := newTestNormalizer()

	res := n.Parse(`{"definitions":[{"term":"cache","definition":"a fast store"}],"arguments":{"main":[],"counter":[]}}`)

	require.Len(t, res.Definitions, 1)
	assert.Equal(t, "cache", res.Definitions[0].Term)
}

func TestParseRawFallback(t *testing.T) {
	n := newTestNormalizer()

	long := strings.Repeat("a", 600)
	res := n.Parse(long)

	require.Len(t, res.Arguments.Main, 1)
	assert.Len(t, res.Arguments.Main[0], 500)
	assert.Empty(t, res.Definitions)
}

func TestParseEmptyFallback(t *testing.T) {
	n := newTestNormalizer()

	res := n.Parse("   \n\t  ")
	assert.Empty(t, res.Arguments.Main)
}

func TestCitationMarkersStripped(t *testing.T) {
	n := newTestNormalizer()

	raw := `{"definitions":[{"term":"ttl [3]","definition":"time to live [1][2] for entries"}],` +
		`"arguments":{"main":["claims [12] are grounded [4]"],"counter":[]}}`
	res := n.Parse(raw)

	require.Len(t, res.Definitions, 1)
	assert.Equal(t, "ttl", res.Definitions[0].Term)
	assert.Equal(t, "time to live for entries", res.Definitions[0].Definition)
	require.Len(t, res.Arguments.Main, 1)
	assert.Equal(t, "claims are grounded", res.Arguments.Main[0])
}

func TestMalformedEntriesFiltered(t *testing.T) {
	n := newTestNormalizer()

	raw := `{"definitions":[{"term":"ok","definition":"fine"},{"term":"","definition":"no term"},42,"bare"],` +
		`"arguments":{"main":["  keep  ",""," ",7],"counter":[]}}`
	res := n.Parse(raw)

	require.Len(t, res.Definitions, 1)
	assert.Equal(t, "ok", res.Definitions[0].Term)
	require.Len(t, res.Arguments.Main, 1)
	assert.Equal(t, "keep", res.Arguments.Main[0])
}

func TestListCaps(t *testing.T) {
	n := newTestNormalizer()

	var defs []string
	for i := 0; i < 30; i++ {
		defs = append(defs, fmt.Sprintf(`{"term":"t%d","definition":"d%d"}`, i, i))
	}
	raw := fmt.Sprintf(`{"definitions":[%s],"arguments":{"main":[],"counter":[]}}`, strings.Join(defs, ","))

	res := n.Parse(raw)
	assert.Len(t, res.Definitions, 20)
}

func TestPlaceholderDomainsDropped(t *testing.T) {
	n := newTestNormalizer()

	raw := `{"relatedArticles":[` +
		`{"title":"real","url":"https://news.ycombinator.com/item?id=1"},` +
		`{"title":"fake","url":"https://example.com/article"},` +
		`{"title":"fake sub","url":"https://www.example.org/a"},` +
		`{"title":"relative","url":"/just/a/path"},` +
		`{"title":"bad scheme","url":"ftp://archive.org/x"}` +
		`],"arguments":{"main":[],"counter":[]}}`
	res := n.Parse(raw)

	require.Len(t, res.RelatedArticles, 1)
	assert.Equal(t, "https://news.ycombinator.com/item?id=1", res.RelatedArticles[0].URL)
}

func TestNonObjectTierFallsThrough(t *testing.T) {
	n := newTestNormalizer()

	// The fenced payload is a JSON array, so the fence tiers reject it and
	// the raw-prefix fallback takes over.
	raw := "```json\n[1,2,3]\n```"
	res := n.Parse(raw)

	require.Len(t, res.Arguments.Main, 1)
	assert.Contains(t, res.Arguments.Main[0], "[1,2,3]")
}
