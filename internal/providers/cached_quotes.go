package providers

import (
	"context"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/providers/webquote"
	"github.com/heliosquant/helios/pkg/redis"
)

// CachedQuoter fronts the quote site with a short-lived cache so
// repeated lookups within a window hit Redis instead of the site.
type CachedQuoter struct {
	client *webquote.Client
	cache  *redis.Cache
}

// NewCachedQuoter creates a caching quote reader
func NewCachedQuoter(client *webquote.Client, cache *redis.Cache) *CachedQuoter {
	return &CachedQuoter{client: client, cache: cache}
}

// Quote returns the latest close for a ticker, cached briefly
func (q *CachedQuoter) Quote(ctx context.Context, ticker string) (contracts.PricePoint, error) {
	var point contracts.PricePoint
	err := q.cache.GetOrSet(ctx, redis.QuoteKey(ticker), &point, redis.TTLShort, func() (interface{}, error) {
		return q.client.Quote(ctx, ticker)
	})
	return point, err
}
