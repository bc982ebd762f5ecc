package pricer

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

// Cached serves recent quotes from memory and asks the wrapped oracle only
// for the bases it has not seen within the TTL.
type Cached struct {
	next  Oracle
	cache *cache.Cache
}

func NewCached(next Oracle, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Prices(ctx context.Context, bases []string) (map[string]domain.Quote, error) {
	bases = normalizeBases(bases)
	out := make(map[string]domain.Quote, len(bases))

	var misses []string
	for _, b := range bases {
		if v, ok := c.cache.Get(b); ok {
			out[b] = v.(domain.Quote)
			continue
		}
		misses = append(misses, b)
	}
	if len(misses) == 0 {
		return out, nil
	}

	fresh, err := c.next.Prices(ctx, misses)
	for b, q := range fresh {
		c.cache.Set(b, q, cache.DefaultExpiration)
		out[b] = q
	}
	return out, err
}
