package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Enricher mirrors pipeline.Enricher so the cache can wrap any backend.
type Enricher interface {
	Enrich(ctx context.Context, text string) (string, error)
}

// CachedEnricher memoizes enrichment responses. Merchant blurbs are static
// enough that a detection run over a statement with fifty Netflix rows
// should cost one model call, not fifty. Errors are not cached; a failed
// lookup is retried on the next request.
type CachedEnricher struct {
	next  Enricher
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedEnricher wraps the given enricher with an in-process cache.
func NewCachedEnricher(next Enricher, ttl time.Duration) (*CachedEnricher, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     32 << 20, // 32 MiB of response text
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("NewCachedEnricher: %w", err)
	}
	return &CachedEnricher{next: next, cache: cache, ttl: ttl}, nil
}

// Enrich returns the cached response when present, otherwise asks the
// backend and stores the result.
func (c *CachedEnricher) Enrich(ctx context.Context, text string) (string, error) {
	if v, ok := c.cache.Get(text); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}

	out, err := c.next.Enrich(ctx, text)
	if err != nil {
		return "", err
	}

	c.cache.SetWithTTL(text, out, int64(len(out)), c.ttl)
	return out, nil
}

// Close releases the cache resources.
func (c *CachedEnricher) Close() {
	c.cache.Close()
}
