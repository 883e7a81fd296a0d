package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heliosquant/helios/internal/contracts"
)

// RunRecord is a stored backtest run
type RunRecord struct {
	ID         string                    `json:"id"`
	PolicyID   string                    `json:"policy_id"`
	PolicyHash string                    `json:"policy_hash"`
	CreatedAt  time.Time                 `json:"created_at"`
	Result     *contracts.BacktestResult `json:"result"`
}

// RunSummary is the listing view of a stored run, without the
// serialized snapshots
type RunSummary struct {
	ID          string    `json:"id"`
	PolicyID    string    `json:"policy_id"`
	CreatedAt   time.Time `json:"created_at"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TotalReturn float64   `json:"total_return"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Truncated   bool      `json:"truncated"`
}

// ResultRepository persists finished backtest runs
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new result repository
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Save stores a finalized run. The full result is kept as JSONB; the
// headline metrics are denormalized for listing queries.
func (r *ResultRepository) Save(ctx context.Context, rec *RunRecord) error {
	if rec.Result == nil || rec.Result.Metrics == nil {
		return fmt.Errorf("refusing to save a run without finalized metrics")
	}

	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	query := `
		INSERT INTO backtest.runs (
			id, policy_id, policy_hash, created_at,
			start_date, end_date, total_return, max_drawdown, truncated,
			result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.PolicyID, rec.PolicyHash, rec.CreatedAt,
		rec.Result.StartDate, rec.Result.EndDate,
		rec.Result.Metrics.TotalReturn, rec.Result.Metrics.MaxDrawdown,
		rec.Result.Truncated,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads one run with its full result
func (r *ResultRepository) Get(ctx context.Context, id string) (*RunRecord, error) {
	query := `
		SELECT id, policy_id, policy_hash, created_at, result
		FROM backtest.runs
		WHERE id = $1
	`

	var rec RunRecord
	var payload []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.PolicyID, &rec.PolicyHash, &rec.CreatedAt, &payload,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	rec.Result = &contracts.BacktestResult{}
	if err := json.Unmarshal(payload, rec.Result); err != nil {
		return nil, fmt.Errorf("failed to deserialize run %s: %w", id, err)
	}
	return &rec, nil
}

// List returns recent runs, newest first
func (r *ResultRepository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, policy_id, created_at, start_date, end_date,
			total_return, max_drawdown, truncated
		FROM backtest.runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		err := rows.Scan(
			&s.ID, &s.PolicyID, &s.CreatedAt, &s.StartDate, &s.EndDate,
			&s.TotalReturn, &s.MaxDrawdown, &s.Truncated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
