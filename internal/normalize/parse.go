package normalize

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// fallbackLen is how much raw text becomes the single main argument when no
// parse tier yields JSON.
const fallbackLen = 500

var (
	labeledFenceRE = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)```")
	plainFenceRE   = regexp.MustCompile("(?s)```\\s*\\n?(.*?)```")
	citationRE     = regexp.MustCompile(`\[\d+\]`)
	whitespaceRE   = regexp.MustCompile(`\s+`)
)

// Normalizer validates and bounds parsed analysis results.
type Normalizer struct {
	policy   Policy
	denylist map[string]struct{}
}

// New creates a Normalizer with the given policy.
func New(p Policy) *Normalizer {
	deny := make(map[string]struct{}, len(p.PlaceholderDomains))
	for _, d := range p.PlaceholderDomains {
		deny[strings.ToLower(d)] = struct{}{}
	}
	return &Normalizer{policy: p, denylist: deny}
}

// Parse extracts an AnalysisResult from raw model text. Tiers are tried in
// order and the first one producing a JSON object wins; if none does, the
// leading raw text becomes a single main argument so callers never see a
// parse error, only a content-poor result.
func (n *Normalizer) Parse(raw string) AnalysisResult {
	tiers := []func(string) (string, bool){
		labeledFence,
		plainFence,
		braceSpan,
		wholeText,
	}

	for _, tier := range tiers {
		payload, ok := tier(raw)
		if !ok {
			continue
		}
		if res, ok := decodeObject(payload); ok {
			return n.sanitize(res)
		}
	}

	return n.sanitize(rawFallback(raw))
}

// labeledFence finds JSON inside a ```json code block.
func labeledFence(raw string) (string, bool) {
	if m := labeledFenceRE.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// plainFence finds JSON inside an unlabeled code block.
func plainFence(raw string) (string, bool) {
	if m := plainFenceRE.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// braceSpan takes the widest {...} span in the text.
func braceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func wholeText(raw string) (string, bool) {
	return raw, true
}

// rawFallback wraps the leading raw text as a single main argument.
func rawFallback(raw string) AnalysisResult {
	text := strings.TrimSpace(raw)
	if len(text) > fallbackLen {
		text = text[:fallbackLen]
	}
	res := AnalysisResult{}
	if text != "" {
		res.Arguments.Main = []string{text}
	}
	return res
}

// decodeObject parses payload as a JSON object and coerces the loosely typed
// fields into an AnalysisResult. Non-object payloads are rejected so the
// caller can fall through to the next tier.
func decodeObject(payload string) (AnalysisResult, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &obj); err != nil {
		return AnalysisResult{}, false
	}

	var res AnalysisResult
	res.Definitions = coerceDefinitions(obj["definitions"])
	if args, ok := obj["arguments"].(map[string]any); ok {
		res.Arguments.Main = coerceStrings(args["main"])
		res.Arguments.Counter = coerceStrings(args["counter"])
	}
	res.RelatedArticles = coerceRelated(obj["relatedArticles"])
	return res, true
}

func coerceDefinitions(v any) []Definition {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var defs []Definition
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		term, _ := entry["term"].(string)
		def, _ := entry["definition"].(string)
		term, def = strings.TrimSpace(term), strings.TrimSpace(def)
		if term == "" || def == "" {
			continue
		}
		defs = append(defs, Definition{Term: term, Definition: def})
	}
	return defs
}

func coerceStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceRelated(v any) []RelatedArticle {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []RelatedArticle
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, _ := entry["title"].(string)
		u, _ := entry["url"].(string)
		title, u = strings.TrimSpace(title), strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, RelatedArticle{Title: title, URL: u})
	}
	return out
}

// sanitize applies caps, URL plausibility checks, and citation stripping to
// an already-decoded result.
func (n *Normalizer) sanitize(res AnalysisResult) AnalysisResult {
	if len(res.Definitions) > n.policy.MaxDefinitions {
		res.Definitions = res.Definitions[:n.policy.MaxDefinitions]
	}
	if len(res.Arguments.Main) > n.policy.MaxArguments {
		res.Arguments.Main = res.Arguments.Main[:n.policy.MaxArguments]
	}
	if len(res.Arguments.Counter) > n.policy.MaxArguments {
		res.Arguments.Counter = res.Arguments.Counter[:n.policy.MaxArguments]
	}

	res.RelatedArticles = n.FilterRelated(res.RelatedArticles)

	for i := range res.Definitions {
		res.Definitions[i].Term = StripCitations(res.Definitions[i].Term)
		res.Definitions[i].Definition = StripCitations(res.Definitions[i].Definition)
	}
	for i := range res.Arguments.Main {
		res.Arguments.Main[i] = StripCitations(res.Arguments.Main[i])
	}
	for i := range res.Arguments.Counter {
		res.Arguments.Counter[i] = StripCitations(res.Arguments.Counter[i])
	}
	for i := range res.RelatedArticles {
		res.RelatedArticles[i].Title = StripCitations(res.RelatedArticles[i].Title)
	}
	return res
}

// FilterRelated drops malformed and placeholder-domain URLs and caps the
// list. Exposed so grounding-sourced articles pass the same policy.
func (n *Normalizer) FilterRelated(in []RelatedArticle) []RelatedArticle {
	var out []RelatedArticle
	for _, a := range in {
		if !n.plausibleURL(a.URL) {
			continue
		}
		out = append(out, a)
		if len(out) == n.policy.MaxRelated {
			break
		}
	}
	return out
}

// plausibleURL accepts well-formed absolute http(s) URLs whose host does not
// match the placeholder denylist. Placeholder hosts are a strong signal the
// model fabricated the source.
func (n *Normalizer) plausibleURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for domain := range n.denylist {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return false
		}
	}
	return true
}

// StripCitations removes bracketed citation markers like [12] left over from
// the model's grounding pass and collapses the surrounding whitespace.
func StripCitations(s string) string {
	s = citationRE.ReplaceAllString(s, "")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
