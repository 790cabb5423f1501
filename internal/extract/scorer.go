package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// candidateSelectors is the priority list of likely article containers.
// Earlier entries are more semantically specific; body is the last resort.
var candidateSelectors = []string{
	"article",
	"[role=article]",
	".article-body",
	".article-content",
	".post-content",
	".post-body",
	".entry-content",
	".story-body",
	".content",
	"main",
	"body",
}

// noiseSelector matches regions that inflate text length without being
// article content.
const noiseSelector = "script, style, noscript, iframe, svg, form, nav, aside, header, footer, " +
	".nav, .navbar, .menu, .sidebar, .ad, .ads, .advert, .advertisement, .promo, " +
	".newsletter, .subscribe, .related, .recommended, .share, .social, .comments, .comment, " +
	"[role=navigation], [role=complementary], [aria-hidden=true]"

// Score adjustments for structural hints.
const (
	bonusArticleTag  = 1000
	bonusAriaArticle = 800
	bonusHeading     = 200
	penaltyMain      = 500
	penaltyBody      = 1000
)

// minParagraphChars filters trivially short paragraphs out of the joined text.
const minParagraphChars = 30

var spaceRE = regexp.MustCompile(`\s+`)

// Scorer extracts article text from HTML documents.
type Scorer struct {
	cfg Config
	log *zap.Logger
}

// NewScorer creates a Scorer with the given bounds.
func NewScorer(cfg Config, log *zap.Logger) *Scorer {
	return &Scorer{cfg: cfg, log: log}
}

type candidate struct {
	sel     *goquery.Selection
	name    string
	cleaned string
	score   int
}

// FromHTML extracts the best-guess article text from an HTML document.
// Candidates are scored by cleaned text length plus structural bonuses; the
// winner's paragraphs are concatenated when long enough, otherwise its
// cleaned inner text is used. When no candidate clears the minimum, a
// readability pass is the last recovery tier before ErrNoContent.
func (s *Scorer) FromHTML(rawHTML, pageURL string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	title := collapse(doc.Find("title").First().Text())
	heading := firstHeading(doc)

	if best := s.pickCandidate(doc); best != nil {
		text := s.candidateText(best)
		return &Snapshot{
			URL:     pageURL,
			Text:    truncateAtSentence(text, s.cfg.MaxChars),
			Title:   title,
			Heading: heading,
		}, nil
	}

	// Last resort: readability sometimes recovers layouts the selector
	// heuristics miss.
	if snap := s.fromReadability(rawHTML, pageURL, title, heading); snap != nil {
		return snap, nil
	}

	return nil, ErrNoContent
}

// pickCandidate enumerates the selector priority list, deduplicates by node
// identity, and returns the highest-scoring candidate that clears the
// minimum length. Ties keep the earlier candidate.
func (s *Scorer) pickCandidate(doc *goquery.Document) *candidate {
	seen := make(map[*html.Node]struct{})
	var best *candidate

	for _, selector := range candidateSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			node := sel.Get(0)
			if _, dup := seen[node]; dup {
				return
			}
			seen[node] = struct{}{}

			cand := s.scoreCandidate(sel)
			if cand == nil {
				return
			}
			if best == nil || cand.score > best.score {
				best = cand
			}
		})
	}
	return best
}

func (s *Scorer) scoreCandidate(sel *goquery.Selection) *candidate {
	cleaned := cleanedText(sel)
	if len(cleaned) < s.cfg.MinChars {
		return nil
	}

	name := goquery.NodeName(sel)
	score := len(cleaned)

	if name == "article" {
		score += bonusArticleTag
	}
	if sel.AttrOr("role", "") == "article" {
		score += bonusAriaArticle
	}
	if sel.Find("h1, h2, h3").Length() > 0 {
		score += bonusHeading
	}
	switch name {
	case "main":
		score -= penaltyMain
	case "body":
		score -= penaltyBody
	}

	return &candidate{sel: sel, name: name, cleaned: cleaned, score: score}
}

// candidateText prefers joined paragraph blocks over raw inner text, which
// keeps navigation and boilerplate leakage out of the result.
func (s *Scorer) candidateText(cand *candidate) string {
	paragraphs := paragraphText(cand.sel)
	if len(paragraphs) >= s.cfg.MinChars {
		return paragraphs
	}
	return cand.cleaned
}

func (s *Scorer) fromReadability(rawHTML, pageURL, title, heading string) *Snapshot {
	var base *url.URL
	if pageURL != "" {
		base, _ = url.Parse(pageURL)
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return nil
	}
	text := collapse(article.TextContent)
	if len(text) < s.cfg.MinChars {
		return nil
	}
	if title == "" {
		title = article.Title
	}
	s.log.Debug("Readability fallback recovered content", zap.String("url", pageURL))
	return &Snapshot{
		URL:     pageURL,
		Text:    truncateAtSentence(text, s.cfg.MaxChars),
		Title:   title,
		Heading: heading,
	}
}

// cleanedText re-parses the candidate in isolation, strips noise regions,
// and returns its collapsed visible text. Reparsing keeps the removal from
// mutating the shared document.
func cleanedText(sel *goquery.Selection) string {
	outer, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outer))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()
	return collapse(doc.Text())
}

// paragraphText joins the candidate's paragraph-level blocks, dropping
// trivially short ones.
func paragraphText(sel *goquery.Selection) string {
	var blocks []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := collapse(p.Text())
		if len(text) >= minParagraphChars {
			blocks = append(blocks, text)
		}
	})
	return strings.Join(blocks, "\n\n")
}

func firstHeading(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "h2"} {
		if h := collapse(doc.Find(sel).First().Text()); h != "" {
			return h
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

// truncateAtSentence caps text at maxChars, cutting at the last sentence
// boundary found past the 80% watermark so output never ends mid-sentence
// when a boundary exists.
func truncateAtSentence(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	watermark := maxChars * 8 / 10
	cut := runes[:maxChars]
	for i := maxChars - 1; i >= watermark; i-- {
		switch cut[i] {
		case '.', '!', '?':
			return strings.TrimSpace(string(cut[:i+1]))
		}
	}
	return strings.TrimSpace(string(cut))
}
