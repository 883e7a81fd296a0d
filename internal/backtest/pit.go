package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

// PITCache serves point-in-time prices for one run. Each ticker's
// series is fetched exactly once for the run horizon; lookups never
// return an observation dated after the requested as-of date. The
// cache is read-mostly: entries are never mutated after the one-time
// fetch.
type PITCache struct {
	provider contracts.PriceProvider
	start    time.Time
	end      time.Time

	mu     sync.Mutex
	series map[string][]contracts.PricePoint
	errs   map[string]error
}

// NewPITCache creates a run-scoped price cache for [start, end]
func NewPITCache(provider contracts.PriceProvider, start, end time.Time) *PITCache {
	return &PITCache{
		provider: provider,
		start:    start,
		end:      end,
		series:   make(map[string][]contracts.PricePoint),
		errs:     make(map[string]error),
	}
}

// PriceAsOf returns the last close at or before asOf. A ticker with no
// observation on or before asOf yields a DataGapError.
func (c *PITCache) PriceAsOf(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	series, err := c.ensure(ctx, ticker)
	if err != nil {
		return 0, &contracts.DataGapError{Ticker: ticker, Reason: err.Error()}
	}

	price := 0.0
	found := false
	for _, p := range series {
		if p.Date.After(asOf) {
			break
		}
		price = p.Close
		found = true
	}
	if !found {
		return 0, &contracts.DataGapError{Ticker: ticker, Reason: "no price at or before " + asOf.Format("2006-01-02")}
	}
	return price, nil
}

// ensure fetches and memoizes the ticker's series for the run horizon
func (c *PITCache) ensure(ctx context.Context, ticker string) ([]contracts.PricePoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.series[ticker]; ok {
		return s, nil
	}
	if err, ok := c.errs[ticker]; ok {
		return nil, err
	}

	series, err := c.provider.PriceSeries(ctx, ticker, c.start, c.end)
	if err != nil {
		c.errs[ticker] = err
		return nil, err
	}

	c.series[ticker] = series
	return series, nil
}
