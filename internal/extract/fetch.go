package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxFetchBytes bounds how much of a page body is read.
const maxFetchBytes = 5 << 20

// Fetcher retrieves a page over HTTP and runs extraction on it.
type Fetcher struct {
	scorer    *Scorer
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher. If client is nil, http.DefaultClient is used.
func NewFetcher(scorer *Scorer, client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{scorer: scorer, client: client, userAgent: userAgent}
}

// FromURL fetches the page and extracts its article text.
func (f *Fetcher) FromURL(ctx context.Context, pageURL string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected HTTP status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}
	return f.scorer.FromHTML(string(body), pageURL)
}
