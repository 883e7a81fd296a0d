package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heliosquant/helios/internal/contracts"
)

// CandidateRepository serves the investable universe as of a date.
// It is the database-backed contracts.CandidateSource.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new candidate repository
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

// Candidates returns the universe members active on asOf with their
// most recent fundamentals on or before that date. A member with no
// fundamentals row yet is still returned; eligibility screens deal
// with the missing fields.
func (r *CandidateRepository) Candidates(ctx context.Context, asOf time.Time) ([]contracts.Candidate, error) {
	query := `
		SELECT
			u.ticker, u.name, u.sector,
			COALESCE(f.price, 0), COALESCE(f.market_cap, 0),
			COALESCE(f.beta, 0), COALESCE(f.volatility, 0)
		FROM market.universe u
		LEFT JOIN LATERAL (
			SELECT price, market_cap, beta, volatility
			FROM market.fundamentals
			WHERE ticker = u.ticker AND as_of_date <= $1
			ORDER BY as_of_date DESC
			LIMIT 1
		) f ON TRUE
		WHERE u.active_from <= $1
		  AND (u.active_to IS NULL OR u.active_to >= $1)
		ORDER BY u.ticker
	`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query universe: %w", err)
	}
	defer rows.Close()

	var candidates []contracts.Candidate
	for rows.Next() {
		var c contracts.Candidate
		err := rows.Scan(
			&c.Ticker, &c.Name, &c.Sector,
			&c.Fundamentals.Price, &c.Fundamentals.MarketCap,
			&c.Fundamentals.Beta, &c.Fundamentals.Volatility,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// SaveFundamentals upserts a fundamentals observation for a ticker
func (r *CandidateRepository) SaveFundamentals(ctx context.Context, ticker string, asOf time.Time, f contracts.Fundamentals) error {
	query := `
		INSERT INTO market.fundamentals (ticker, as_of_date, price, market_cap, beta, volatility)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker, as_of_date) DO UPDATE SET
			price = EXCLUDED.price,
			market_cap = EXCLUDED.market_cap,
			beta = EXCLUDED.beta,
			volatility = EXCLUDED.volatility,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, ticker, asOf, f.Price, f.MarketCap, f.Beta, f.Volatility)
	return err
}

// UpsertMember adds a ticker to the universe or updates its listing
func (r *CandidateRepository) UpsertMember(ctx context.Context, ticker, name, sector string, activeFrom time.Time) error {
	query := `
		INSERT INTO market.universe (ticker, name, sector, active_from)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			active_from = LEAST(market.universe.active_from, EXCLUDED.active_from),
			active_to = NULL
	`

	_, err := r.pool.Exec(ctx, query, ticker, name, sector, activeFrom)
	return err
}

// RetireMember closes a ticker's listing window
func (r *CandidateRepository) RetireMember(ctx context.Context, ticker string, activeTo time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE market.universe SET active_to = $2 WHERE ticker = $1`,
		ticker, activeTo,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
