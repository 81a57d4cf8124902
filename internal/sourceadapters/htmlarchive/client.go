// Package htmlarchive implements the historical HTML archive source
// adapter: a slower-rate, cached, file-backed HTML fetch. The CLI
// builds one for ingestors.Resources; no ingestor calls it.
package htmlarchive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/platform/filecache"
	"github.com/nbavault/vault/internal/platform/ratelimit"
)

const defaultBaseURL = "https://www.basketball-reference.com"

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Registry
	cache      *filecache.Cache
}

func NewClient(baseURL string, httpClient *http.Client, limiter *ratelimit.Registry, cache *filecache.Cache) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, limiter: limiter, cache: cache}
}

// Fetch returns the raw HTML bytes for path, same classification rules
// as the stats API client (429/5xx retryable, other 4xx fatal).
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	fingerprint := filecache.Fingerprint(path, nil)

	if cached, ok := c.cache.Get(ctx, "html_archive", fingerprint); ok {
		return cached, nil
	}

	if err := c.limiter.Acquire(ctx, ratelimit.FamilyHTMLArchive); err != nil {
		return nil, fmt.Errorf("htmlarchive: acquire rate token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("htmlarchive: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("htmlarchive: send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("htmlarchive: read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(raw) == 0 {
			return nil, ingestkit.ErrSourceEmpty
		}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, ingestkit.Retryable(fmt.Errorf("htmlarchive: status=%d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("htmlarchive: status=%d", resp.StatusCode)
	default:
		return nil, ingestkit.Retryable(fmt.Errorf("htmlarchive: status=%d", resp.StatusCode))
	}

	if err := c.cache.Put(ctx, "html_archive", fingerprint, raw); err != nil {
		return raw, nil
	}
	return raw, nil
}
