package contracts

import (
	"context"
	"time"
)

// ScoreProvider is the capability contract for one scoring agent.
// Score must be safe to call concurrently and idempotent for a fixed
// (ticker, asOf) pair.
type ScoreProvider interface {
	AgentID() string
	Score(ctx context.Context, ticker string, asOf time.Time) (AgentScore, error)
}

// PricePoint is one (date, close) observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceProvider serves historical close prices. Gaps are tolerated:
// missing trading days are simply absent, never zero-filled.
type PriceProvider interface {
	PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]PricePoint, error)
}

// CandidateSource lists the candidates under consideration at a date.
type CandidateSource interface {
	Candidates(ctx context.Context, asOf time.Time) ([]Candidate, error)
}
