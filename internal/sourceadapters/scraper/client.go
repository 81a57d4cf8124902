// Package scraper implements the current-season HTML scraper source
// adapters (injuries, contracts). Unlike the archive adapters these
// are never cached — every call fetches fresh HTML — but they still
// honor the per-source rate limit.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/platform/ratelimit"
)

// Backend is a scraper site, selected by the ingestor's "source" kwarg.
type Backend string

const (
	BackendESPN     Backend = "espn"
	BackendRotowire Backend = "rotowire"
)

var backendURLs = map[Backend]string{
	BackendESPN:     "https://www.espn.com/nba/injuries",
	BackendRotowire: "https://www.rotowire.com/basketball/injury-report.php",
}

type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Registry
}

func NewClient(httpClient *http.Client, limiter *ratelimit.Registry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpClient: httpClient, limiter: limiter}
}

// FetchCurrent fetches the current page for backend, non-cached.
func (c *Client) FetchCurrent(ctx context.Context, backend Backend) ([]byte, error) {
	url, ok := backendURLs[backend]
	if !ok {
		return nil, fmt.Errorf("scraper: unknown backend %q", backend)
	}

	if err := c.limiter.Acquire(ctx, ratelimit.FamilyScraper); err != nil {
		return nil, fmt.Errorf("scraper: acquire rate token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("scraper: send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("scraper: read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(raw) == 0 {
			return nil, ingestkit.ErrSourceEmpty
		}
		return raw, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, ingestkit.Retryable(fmt.Errorf("scraper: status=%d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("scraper: status=%d", resp.StatusCode)
	}
}
