package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// GeminiOptions configures the Gemini REST client.
type GeminiOptions struct {
	Endpoint string
	Model    string
	APIKey   string
	RetryMax int
	Timeout  time.Duration
}

// GeminiClient implements Analyzer and Searcher against the Gemini
// generateContent API. The search call enables the google_search tool so the
// response carries grounding metadata.
type GeminiClient struct {
	inner    *retryablehttp.Client
	endpoint string
	model    string
	apiKey   string
	log      *zap.Logger
}

// NewGeminiClient creates a GeminiClient. Transient failures are retried
// inside the client with retryablehttp's default backoff.
func NewGeminiClient(opts GeminiOptions, log *zap.Logger) *GeminiClient {
	r := retryablehttp.NewClient()
	r.RetryMax = opts.RetryMax
	r.HTTPClient.Timeout = opts.Timeout
	r.Logger = nil
	return &GeminiClient{
		inner:    r,
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		model:    opts.Model,
		apiKey:   opts.APIKey,
		log:      log,
	}
}

const analyzePromptFormat = `Analyze the following article. Respond with a single JSON object:
{"definitions":[{"term":"...","definition":"..."}],"arguments":{"main":["..."],"counter":["..."]}}
Focus the definitions on the key technical or domain terms%s.
List the article's main arguments and the counterarguments it raises or invites.

Article:
%s`

const searchPromptFormat = `Find recent, reputable articles related to: %s
Respond with a single JSON object: {"relatedArticles":[{"title":"...","url":"..."}]}`

// Analyze asks the model for definitions and arguments over the article text.
func (c *GeminiClient) Analyze(ctx context.Context, article string, concepts []string) (*Response, error) {
	hint := ""
	if len(concepts) > 0 {
		hint = fmt.Sprintf(", especially: %s", strings.Join(concepts, ", "))
	}
	prompt := fmt.Sprintf(analyzePromptFormat, hint, article)
	return c.generate(ctx, prompt, false)
}

// Search asks the model for related sources, with web search grounding on.
func (c *GeminiClient) Search(ctx context.Context, query string) (*Response, error) {
	return c.generate(ctx, fmt.Sprintf(searchPromptFormat, query), true)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, withSearch bool) (*Response, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if withSearch {
		reqBody.Tools = []geminiTool{{}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, &Error{Class: ClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e := &Error{
			Class:  classify(resp.StatusCode),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
		if e.Class == ClassRateLimit {
			e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		c.log.Warn("Upstream call failed",
			zap.Int("status", resp.StatusCode),
			zap.String("class", e.Class.String()))
		return nil, e
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Class: ClassServer, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return toResponse(&decoded), nil
}

// toResponse flattens the first candidate's text and every candidate's
// grounding chunks.
func toResponse(decoded *geminiResponse) *Response {
	out := &Response{}
	for i, cand := range decoded.Candidates {
		if i == 0 {
			var sb strings.Builder
			for _, part := range cand.Content.Parts {
				sb.WriteString(part.Text)
			}
			out.Text = sb.String()
		}
		var chunks []GroundingChunk
		if cand.GroundingMetadata != nil {
			for _, gc := range cand.GroundingMetadata.GroundingChunks {
				if gc.Web != nil {
					chunks = append(chunks, GroundingChunk{Title: gc.Web.Title, URI: gc.Web.URI})
				}
			}
		}
		out.Grounding = append(out.Grounding, chunks)
	}
	return out
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
