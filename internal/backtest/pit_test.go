package backtest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

type seriesProvider struct {
	series map[string][]contracts.PricePoint
	calls  atomic.Int32
}

func (p *seriesProvider) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]contracts.PricePoint, error) {
	p.calls.Add(1)
	s, ok := p.series[ticker]
	if !ok {
		return nil, &contracts.DataGapError{Ticker: ticker, Reason: "unknown ticker"}
	}
	return s, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPITCache_PriceAsOf(t *testing.T) {
	provider := &seriesProvider{series: map[string][]contracts.PricePoint{
		"AAA": {
			{Date: day(2024, 1, 2), Close: 100},
			{Date: day(2024, 1, 3), Close: 105},
			{Date: day(2024, 1, 8), Close: 110},
		},
	}}
	cache := NewPITCache(provider, day(2024, 1, 1), day(2024, 2, 1))
	ctx := context.Background()

	// Exact date
	p, err := cache.PriceAsOf(ctx, "AAA", day(2024, 1, 3))
	if err != nil {
		t.Fatalf("PriceAsOf() error = %v", err)
	}
	if p != 105 {
		t.Errorf("PriceAsOf(01-03) = %v, want 105", p)
	}

	// Gap day: last observation at or before applies, never a later one
	p, err = cache.PriceAsOf(ctx, "AAA", day(2024, 1, 5))
	if err != nil {
		t.Fatalf("PriceAsOf() error = %v", err)
	}
	if p != 105 {
		t.Errorf("PriceAsOf(01-05) = %v, want 105 (not the 01-08 close)", p)
	}

	// Before the first observation
	if _, err := cache.PriceAsOf(ctx, "AAA", day(2024, 1, 1)); !contracts.IsDataGap(err) {
		t.Errorf("Expected data gap before first observation, got %v", err)
	}
}

func TestPITCache_FetchesOncePerTicker(t *testing.T) {
	provider := &seriesProvider{series: map[string][]contracts.PricePoint{
		"AAA": {{Date: day(2024, 1, 2), Close: 100}},
	}}
	cache := NewPITCache(provider, day(2024, 1, 1), day(2024, 2, 1))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := cache.PriceAsOf(ctx, "AAA", day(2024, 1, 10)); err != nil {
			t.Fatalf("PriceAsOf() error = %v", err)
		}
	}

	if got := provider.calls.Load(); got != 1 {
		t.Errorf("provider called %d times, want 1 (memoized)", got)
	}
}

func TestPITCache_UnknownTickerIsGap(t *testing.T) {
	provider := &seriesProvider{series: map[string][]contracts.PricePoint{}}
	cache := NewPITCache(provider, day(2024, 1, 1), day(2024, 2, 1))

	_, err := cache.PriceAsOf(context.Background(), "NOPE", day(2024, 1, 10))
	if !contracts.IsDataGap(err) {
		t.Errorf("Expected DataGapError, got %v", err)
	}
}
