// Package ratelimit provides a process-wide, per-source-family token
// bucket shared by every outbound call bound to that source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Family names a rate-limit domain. One Limiter bucket exists per
// family for the lifetime of the process.
type Family string

const (
	FamilyStatsAPI    Family = "stats_api"
	FamilyHTMLArchive Family = "html_archive"
	FamilyScraper     Family = "scraper"
	FamilyBulkArchive Family = "bulk_archive"
)

// defaultRates holds the documented per-source defaults: stats JSON
// roughly 8 req/min, HTML archive one request per 3s, current-season
// scrapers one request per 2s, bulk downloads unrestricted.
var defaultRates = map[Family]rate.Limit{
	FamilyStatsAPI:    rate.Every(time.Minute / 8),
	FamilyHTMLArchive: rate.Every(3 * time.Second),
	FamilyScraper:     rate.Every(2 * time.Second),
}

var defaultBurst = map[Family]int{
	FamilyStatsAPI:    1,
	FamilyHTMLArchive: 1,
	FamilyScraper:     1,
}

// Registry owns one rate.Limiter per source family, shared by every
// ingestor bound to that family.
type Registry struct {
	mu       sync.Mutex
	limiters map[Family]*rate.Limiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[Family]*rate.Limiter)}
}

// Override replaces the default limiter for family, for operators that
// need a different cap (e.g. a paid API tier).
func (r *Registry) Override(family Family, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[family] = rate.NewLimiter(limit, burst)
}

// Acquire blocks until a token is available for family, then consumes
// one. The bulk archive family has no limit and returns immediately.
func (r *Registry) Acquire(ctx context.Context, family Family) error {
	if family == FamilyBulkArchive {
		return nil
	}
	return r.limiterFor(family).Wait(ctx)
}

func (r *Registry) limiterFor(family Family) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[family]; ok {
		return l
	}

	limit, ok := defaultRates[family]
	if !ok {
		limit = rate.Inf
	}
	burst := defaultBurst[family]
	if burst <= 0 {
		burst = 1
	}

	l := rate.NewLimiter(limit, burst)
	r.limiters[family] = l
	return l
}
