package contracts

import (
	"math"
	"time"
)

// WeightEpsilon is the tolerance used when checking that holdings plus
// cash sum to one.
const WeightEpsilon = 1e-9

// PortfolioSnapshot is the target portfolio at one rebalance date.
// Produced once per date; the sequence across a backtest is append-only.
type PortfolioSnapshot struct {
	AsOfDate   time.Time          `json:"as_of_date"`
	Holdings   map[string]float64 `json:"holdings"` // key: ticker, value: weight (0.0 ~ 1.0)
	CashWeight float64            `json:"cash_weight"`

	// Blended scores the constructor ranked on, key: ticker
	BlendedScores map[string]float64 `json:"blended_scores,omitempty"`

	// Sector per held ticker, carried for cap accounting
	Sectors map[string]string `json:"sectors,omitempty"`

	// Fewer eligible candidates than min_positions
	UnderDiversified bool `json:"under_diversified,omitempty"`
	// Caps made min_positions unsatisfiable
	PolicyInfeasible bool `json:"policy_infeasible,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// TotalWeight returns the sum of all holding weights
func (s *PortfolioSnapshot) TotalWeight() float64 {
	total := 0.0
	for _, w := range s.Holdings {
		total += w
	}
	return total
}

// Count returns the number of holdings
func (s *PortfolioSnapshot) Count() int {
	return len(s.Holdings)
}

// Weight returns the weight held in a ticker (0 if not held)
func (s *PortfolioSnapshot) Weight(ticker string) float64 {
	return s.Holdings[ticker]
}

// SectorWeight returns the aggregate weight held in a sector
func (s *PortfolioSnapshot) SectorWeight(sector string) float64 {
	total := 0.0
	for ticker, w := range s.Holdings {
		if s.Sectors[ticker] == sector {
			total += w
		}
	}
	return total
}

// IsBalanced checks that holdings plus cash sum to one within tolerance
func (s *PortfolioSnapshot) IsBalanced() bool {
	return math.Abs(s.TotalWeight()+s.CashWeight-1.0) < 1e-6
}

// AllCash builds the initial snapshot of a backtest
func AllCash(asOf time.Time) *PortfolioSnapshot {
	return &PortfolioSnapshot{
		AsOfDate:   asOf,
		Holdings:   map[string]float64{},
		CashWeight: 1.0,
	}
}

// RebalanceEvent is the derived delta between two consecutive
// snapshots. Never mutated after creation.
type RebalanceEvent struct {
	AsOfDate time.Time          `json:"as_of_date"`
	Prior    *PortfolioSnapshot `json:"prior"`
	Target   *PortfolioSnapshot `json:"target"`
	Trades   map[string]float64 `json:"trades"` // key: ticker, value: delta weight
	Turnover float64            `json:"turnover"`
	// Turnover x cost_bps, as a fraction of equity
	TransactionCost float64  `json:"transaction_cost"`
	Skipped         bool     `json:"skipped,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// PerformanceMetrics summarizes a backtest's equity curve.
type PerformanceMetrics struct {
	TotalReturn          float64 `json:"total_return"`
	CAGR                 float64 `json:"cagr"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	WinRate              float64 `json:"win_rate"`
	ValueAtRisk95        float64 `json:"value_at_risk_95"`

	// Set only when a benchmark series was supplied
	BenchmarkReturn *float64 `json:"benchmark_return,omitempty"`
	ExcessReturn    *float64 `json:"excess_return,omitempty"`
}

// BacktestResult is the complete product of one backtest run.
// Owned exclusively by the run that created it.
type BacktestResult struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Snapshots []*PortfolioSnapshot `json:"snapshots"`
	Events    []*RebalanceEvent    `json:"events"`

	// Equity value after each snapshot, relative to 1.0 initial
	Equity []float64 `json:"equity"`

	Metrics *PerformanceMetrics `json:"metrics,omitempty"`

	// Run cancelled between steps; snapshots cover only completed steps
	Truncated bool `json:"truncated,omitempty"`
}

// FinalEquity returns the last equity value (1.0 for an empty run)
func (r *BacktestResult) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return 1.0
	}
	return r.Equity[len(r.Equity)-1]
}

// Steps returns the number of completed rebalance steps
func (r *BacktestResult) Steps() int {
	return len(r.Snapshots)
}
