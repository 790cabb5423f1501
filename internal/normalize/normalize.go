// Package normalize turns free-form model output into a validated, size-
// bounded analysis structure. Parsing never fails: malformed input degrades
// to a content-poor result instead of an error.
package normalize

// Definition is a key term with its explanation.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Arguments holds the main and counter argument lists of an analysis.
type Arguments struct {
	Main    []string `json:"main"`
	Counter []string `json:"counter"`
}

// RelatedArticle is a source link with a display title. URL is always a
// well-formed absolute URL after normalization.
type RelatedArticle struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AnalysisResult is the validated output of one analysis call.
type AnalysisResult struct {
	Definitions     []Definition     `json:"definitions"`
	Arguments       Arguments        `json:"arguments"`
	RelatedArticles []RelatedArticle `json:"relatedArticles,omitempty"`
}

// Policy bounds result sizes and flags implausible source URLs. The
// placeholder-domain list is a heuristic and deliberately configurable.
type Policy struct {
	PlaceholderDomains []string
	MaxRelated         int
	MaxDefinitions     int
	MaxArguments       int
}

// DefaultPolicy returns the stock caps and denylist.
func DefaultPolicy() Policy {
	return Policy{
		PlaceholderDomains: []string{
			"example.com", "example.org", "example.net", "example-site.com",
			"yoursite.com", "placeholder.com", "test.com", "domain.com",
			"website.com", "sample.com", "localhost",
		},
		MaxRelated:     10,
		MaxDefinitions: 20,
		MaxArguments:   20,
	}
}
