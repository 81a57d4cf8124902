// Package statsapi implements the stats JSON API source adapter: the
// rate limiter -> cache -> HTTP call -> retry-classification chain
// described by the fetch contract for stats-API-backed ingestors.
package statsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nbavault/vault/internal/ingestkit"
	"github.com/nbavault/vault/internal/platform/filecache"
	"github.com/nbavault/vault/internal/platform/logging"
	"github.com/nbavault/vault/internal/platform/ratelimit"
	"github.com/nbavault/vault/internal/platform/resilience"
)

const defaultBaseURL = "https://stats.nba.com/stats"

type Config struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client is the per-process stats API adapter, shared by every
// stats-API-backed ingestor. It owns the rate limiter acquisition and
// the response cache read-through; it issues exactly one HTTP call per
// invocation and leaves retry looping to the ingest runner.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	logger         *logging.Logger
	limiter        *ratelimit.Registry
	cache          *filecache.Cache
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg Config, limiter *ratelimit.Registry, cache *filecache.Cache) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		logger:         logger,
		limiter:        limiter,
		cache:          cache,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// Call fetches endpointID with params, decoding the response into
// target. Cache lookups precede rate-limit acquisition so a warm cache
// performs no I/O beyond the filesystem. An empty result set is
// reported as ingestkit.ErrSourceEmpty; HTTP 429/5xx are wrapped with
// ingestkit.Retryable; other 4xx are returned as-is (fatal).
func (c *Client) Call(ctx context.Context, endpointID string, params map[string]string, target any) error {
	fingerprint := filecache.Fingerprint(endpointID, params)

	if cached, ok := c.cache.Get(ctx, "stats_api", fingerprint); ok {
		return decode(cached, target)
	}

	if err := c.limiter.Acquire(ctx, ratelimit.FamilyStatsAPI); err != nil {
		return fmt.Errorf("statsapi: acquire rate token: %w", err)
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			return ingestkit.Retryable(fmt.Errorf("statsapi: circuit open: %w", err))
		}
	}

	raw, err := c.execute(ctx, endpointID, params)
	if c.circuitEnabled {
		if err != nil && !isEmptyErr(err) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return err
	}

	if err := c.cache.Put(ctx, "stats_api", fingerprint, raw); err != nil {
		c.logger.WarnContext(ctx, "statsapi: failed to write cache entry", "error", err)
	}

	return decode(raw, target)
}

func (c *Client) execute(ctx context.Context, endpointID string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	fullURL := c.baseURL + endpointID
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("statsapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("statsapi: send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, ingestkit.Retryable(fmt.Errorf("statsapi: read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(raw) == 0 {
			return nil, ingestkit.ErrSourceEmpty
		}
		return raw, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, ingestkit.Retryable(fmt.Errorf("statsapi: status=%d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("statsapi: status=%d", resp.StatusCode)
	default:
		// Open question (b): undocumented codes default to retry.
		return nil, ingestkit.Retryable(fmt.Errorf("statsapi: status=%d", resp.StatusCode))
	}
}

func decode(raw []byte, target any) error {
	if target == nil {
		return nil
	}
	if err := jsoniter.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("statsapi: decode payload: %w", err)
	}
	return nil
}

func isEmptyErr(err error) bool {
	return err == ingestkit.ErrSourceEmpty
}
