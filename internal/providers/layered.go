package providers

import (
	"context"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/pkg/logger"
)

// SeriesStore is the subset of the price repository the layered
// provider needs for write-back.
type SeriesStore interface {
	SaveSeries(ctx context.Context, ticker string, points []contracts.PricePoint) error
}

// LayeredPriceProvider serves prices from the primary store and falls
// back to the secondary source on a gap, writing fetched series back
// so the next run hits the store.
type LayeredPriceProvider struct {
	primary   contracts.PriceProvider
	secondary contracts.PriceProvider
	store     SeriesStore
	logger    *logger.Logger
}

// NewLayeredPriceProvider creates a layered provider. store may be nil
// to disable write-back.
func NewLayeredPriceProvider(primary, secondary contracts.PriceProvider, store SeriesStore, log *logger.Logger) *LayeredPriceProvider {
	return &LayeredPriceProvider{
		primary:   primary,
		secondary: secondary,
		store:     store,
		logger:    log,
	}
}

// PriceSeries tries the primary store first. Only an empty or gapped
// answer falls through; a hard primary error surfaces as-is so outages
// are not papered over by scraping.
func (p *LayeredPriceProvider) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]contracts.PricePoint, error) {
	points, err := p.primary.PriceSeries(ctx, ticker, start, end)
	if err == nil && len(points) > 0 {
		return points, nil
	}
	if err != nil && !contracts.IsDataGap(err) {
		return nil, err
	}

	if p.logger != nil {
		p.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"start":  start.Format("2006-01-02"),
			"end":    end.Format("2006-01-02"),
		}).Info("Primary store has no prices, falling back to quote site")
	}

	points, err = p.secondary.PriceSeries(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if p.store != nil && len(points) > 0 {
		if saveErr := p.store.SaveSeries(ctx, ticker, points); saveErr != nil && p.logger != nil {
			p.logger.WithError(saveErr).WithField("ticker", ticker).Warn("Failed to write back fetched prices")
		}
	}
	return points, nil
}
