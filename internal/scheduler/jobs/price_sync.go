package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/data"
	"github.com/heliosquant/helios/pkg/logger"
)

// PriceSyncJob pulls recent closes for every universe member from the
// quote source and upserts them into the price store. Lookback covers
// weekends and short outages.
type PriceSyncJob struct {
	source   contracts.CandidateSource
	fetcher  contracts.PriceProvider
	prices   *data.PriceRepository
	lookback time.Duration
	logger   *logger.Logger
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(
	source contracts.CandidateSource,
	fetcher contracts.PriceProvider,
	prices *data.PriceRepository,
	log *logger.Logger,
) *PriceSyncJob {
	return &PriceSyncJob{
		source:   source,
		fetcher:  fetcher,
		prices:   prices,
		lookback: 7 * 24 * time.Hour,
		logger:   log,
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Schedule runs at 5 PM on weekdays, before evaluation
func (j *PriceSyncJob) Schedule() string {
	return "0 0 17 * * MON-FRI"
}

// Run syncs recent closes for the whole universe. A ticker that fails
// is logged and skipped so one bad symbol does not stall the sync.
func (j *PriceSyncJob) Run(ctx context.Context) error {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now.Add(-j.lookback)

	candidates, err := j.source.Candidates(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load universe: %w", err)
	}

	synced, failed := 0, 0
	for _, c := range candidates {
		points, err := j.fetcher.PriceSeries(ctx, c.Ticker, start, now)
		if err != nil {
			if !contracts.IsDataGap(err) && ctx.Err() != nil {
				return ctx.Err()
			}
			j.logger.WithError(err).WithField("ticker", c.Ticker).Warn("Price fetch failed, skipping ticker")
			failed++
			continue
		}

		if err := j.prices.SaveSeries(ctx, c.Ticker, points); err != nil {
			j.logger.WithError(err).WithField("ticker", c.Ticker).Warn("Price save failed")
			failed++
			continue
		}
		synced++
	}

	j.logger.WithFields(map[string]interface{}{
		"synced": synced,
		"failed": failed,
	}).Info("Price sync completed")

	if synced == 0 && failed > 0 {
		return fmt.Errorf("price sync failed for all %d tickers", failed)
	}
	return nil
}
