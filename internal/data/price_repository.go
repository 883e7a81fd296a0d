package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heliosquant/helios/internal/contracts"
)

// PriceRepository stores and serves daily closing prices. It is the
// database-backed contracts.PriceProvider used by live runs and by
// backtests over persisted history.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// PriceSeries returns the date-ordered closes for a ticker within the
// range, inclusive on both ends
func (r *PriceRepository) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]contracts.PricePoint, error) {
	query := `
		SELECT trade_date, close_price
		FROM market.daily_prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var points []contracts.PricePoint
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// LatestClose returns the most recent close for a ticker
func (r *PriceRepository) LatestClose(ctx context.Context, ticker string) (contracts.PricePoint, error) {
	query := `
		SELECT trade_date, close_price
		FROM market.daily_prices
		WHERE ticker = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var p contracts.PricePoint
	err := r.pool.QueryRow(ctx, query, ticker).Scan(&p.Date, &p.Close)
	if err == pgx.ErrNoRows {
		return p, &contracts.DataGapError{Ticker: ticker, Reason: "no price history"}
	}
	if err != nil {
		return p, fmt.Errorf("failed to get latest close for %s: %w", ticker, err)
	}
	return p, nil
}

// Save upserts a single close
func (r *PriceRepository) Save(ctx context.Context, ticker string, point contracts.PricePoint) error {
	query := `
		INSERT INTO market.daily_prices (ticker, trade_date, close_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			close_price = EXCLUDED.close_price,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, ticker, point.Date, point.Close)
	return err
}

// SaveSeries upserts a whole series in one round trip
func (r *PriceRepository) SaveSeries(ctx context.Context, ticker string, points []contracts.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO market.daily_prices (ticker, trade_date, close_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			close_price = EXCLUDED.close_price,
			updated_at = NOW()
	`
	for _, p := range points {
		batch.Queue(query, ticker, p.Date, p.Close)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range points {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save price series for %s: %w", ticker, err)
		}
	}
	return nil
}
