package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heliosquant/helios/internal/contracts"
)

// ScoreRepository persists blended score sets so that evaluation
// rounds can be replayed and audited without calling the agents again.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Save writes a score set and its per-agent components in one
// transaction
func (r *ScoreRepository) Save(ctx context.Context, set *contracts.ScoreSet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	blendedQuery := `
		INSERT INTO scoring.blended_scores (ticker, as_of_date, blended_score, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker, as_of_date) DO UPDATE SET
			blended_score = EXCLUDED.blended_score,
			confidence = EXCLUDED.confidence,
			updated_at = NOW()
	`
	_, err = tx.Exec(ctx, blendedQuery, set.Ticker, set.AsOfDate, set.BlendedScore, set.Confidence)
	if err != nil {
		return fmt.Errorf("failed to save blended score for %s: %w", set.Ticker, err)
	}

	agentQuery := `
		INSERT INTO scoring.agent_scores (ticker, as_of_date, agent_id, score, rationale, produced_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker, as_of_date, agent_id) DO UPDATE SET
			score = EXCLUDED.score,
			rationale = EXCLUDED.rationale,
			produced_at = EXCLUDED.produced_at
	`
	for _, s := range set.Scores {
		_, err = tx.Exec(ctx, agentQuery, set.Ticker, set.AsOfDate, s.AgentID, s.Score, s.Rationale, s.ProducedAt)
		if err != nil {
			return fmt.Errorf("failed to save agent score %s/%s: %w", set.Ticker, s.AgentID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByTickerAndDate loads a score set with its agent components
func (r *ScoreRepository) GetByTickerAndDate(ctx context.Context, ticker string, asOf time.Time) (*contracts.ScoreSet, error) {
	set := &contracts.ScoreSet{
		Ticker:   ticker,
		AsOfDate: asOf,
		Scores:   make(map[string]contracts.AgentScore),
	}

	blendedQuery := `
		SELECT blended_score, confidence
		FROM scoring.blended_scores
		WHERE ticker = $1 AND as_of_date = $2
	`
	err := r.pool.QueryRow(ctx, blendedQuery, ticker, asOf).Scan(&set.BlendedScore, &set.Confidence)
	if err == pgx.ErrNoRows {
		return nil, &contracts.DataGapError{Ticker: ticker, Reason: "no stored scores"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blended score for %s: %w", ticker, err)
	}

	agentQuery := `
		SELECT agent_id, score, rationale, produced_at
		FROM scoring.agent_scores
		WHERE ticker = $1 AND as_of_date = $2
		ORDER BY agent_id
	`
	rows, err := r.pool.Query(ctx, agentQuery, ticker, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent scores for %s: %w", ticker, err)
	}
	defer rows.Close()

	for rows.Next() {
		var s contracts.AgentScore
		if err := rows.Scan(&s.AgentID, &s.Score, &s.Rationale, &s.ProducedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent score row: %w", err)
		}
		set.Scores[s.AgentID] = s
	}
	return set, rows.Err()
}

// LatestDate returns the most recent date any ticker was scored
func (r *ScoreRepository) LatestDate(ctx context.Context) (time.Time, error) {
	var latest time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(as_of_date) FROM scoring.blended_scores`,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest score date: %w", err)
	}
	return latest, nil
}
