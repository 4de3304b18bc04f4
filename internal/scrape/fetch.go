// Package scrape fetches the hall of fame leaderboard page and extracts its
// table rows without pulling in a DOM parser: the page is a single WordPress
// table and regexp extraction has survived every layout tweak so far.
package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const maxPageBytes = 2 * 1024 * 1024

// Fetcher retrieves the leaderboard HTML over plain HTTP.
type Fetcher struct {
	client *http.Client
	url    string
}

// NewFetcher creates a Fetcher for the given page URL.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Fetch downloads the page body.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; HofTrack/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "scrape: fetch page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("scrape: status %d fetching %s", resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", eris.Wrap(err, "scrape: read body")
	}
	if len(body) < 100 {
		return "", eris.New("scrape: empty page")
	}

	zap.L().Debug("scrape: page fetched",
		zap.String("url", f.url),
		zap.Int("bytes", len(body)),
		zap.Int("status", resp.StatusCode),
	)
	return string(body), nil
}
