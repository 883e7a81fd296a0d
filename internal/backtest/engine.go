package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/heliosquant/helios/internal/analysis"
	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/eligibility"
	"github.com/heliosquant/helios/internal/evaluate"
	"github.com/heliosquant/helios/internal/policyconfig"
	"github.com/heliosquant/helios/internal/portfolio"
	"github.com/heliosquant/helios/internal/schedule"
	"github.com/heliosquant/helios/pkg/logger"
)

// State of a backtest run.
type State string

const (
	StateInitializing State = "initializing"
	StateStepping     State = "stepping"
	StateFinalized    State = "finalized"
)

// Config holds one backtest run's parameters.
type Config struct {
	StartDate   time.Time
	EndDate     time.Time
	CadenceDays int
	CostBps     float64
	Benchmark   string // ticker of the benchmark series, optional
}

// ProgressFunc is called after each completed step.
type ProgressFunc func(step, total int, asOf time.Time, equity float64)

// Engine walks the rebalance schedule. Strictly sequential across
// time: each step depends on the portfolio state of the previous one.
// Within a step, candidate evaluation runs concurrently inside the
// evaluator.
type Engine struct {
	policy      *contracts.InvestorPolicy
	source      contracts.CandidateSource
	evaluator   *evaluate.Evaluator
	filter      *eligibility.Filter
	constructor *portfolio.Constructor
	prices      contracts.PriceProvider
	calendar    schedule.Calendar
	logger      *logger.Logger

	state    State
	progress ProgressFunc
}

// NewEngine creates a backtest engine
func NewEngine(
	policy *contracts.InvestorPolicy,
	source contracts.CandidateSource,
	evaluator *evaluate.Evaluator,
	prices contracts.PriceProvider,
	calendar schedule.Calendar,
	log *logger.Logger,
) *Engine {
	return &Engine{
		policy:      policy,
		source:      source,
		evaluator:   evaluator,
		filter:      eligibility.NewFilter(policy, log),
		constructor: portfolio.NewConstructor(policy, log),
		prices:      prices,
		calendar:    calendar,
		logger:      log,
		state:       StateInitializing,
	}
}

// WithProgress registers a per-step progress callback
func (e *Engine) WithProgress(fn ProgressFunc) *Engine {
	e.progress = fn
	return e
}

// State returns the engine's current state
func (e *Engine) State() State {
	return e.state
}

// Run executes the walk-forward simulation. Configuration failures
// surface as errors before the first step; per-step and per-candidate
// failures are absorbed into the result as warnings. Cancellation
// between steps finalizes the partial result with the truncated flag,
// never discarding completed steps.
func (e *Engine) Run(ctx context.Context, cfg Config) (*contracts.BacktestResult, error) {
	if err := policyconfig.ValidatePolicy(e.policy); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if cfg.CostBps < 0 {
		return nil, fmt.Errorf("cost_bps must be >= 0, got %v", cfg.CostBps)
	}

	sched, err := schedule.New(cfg.StartDate, cfg.EndDate, cfg.CadenceDays, e.calendar)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	dates := sched.Dates()
	if len(dates) == 0 {
		return nil, fmt.Errorf("no trading days between %s and %s",
			cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"))
	}

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"start":    cfg.StartDate.Format("2006-01-02"),
			"end":      cfg.EndDate.Format("2006-01-02"),
			"cadence":  cfg.CadenceDays,
			"steps":    len(dates),
			"cost_bps": cfg.CostBps,
		}).Info("Backtest started")
	}

	result := &contracts.BacktestResult{
		StartDate: dates[0],
		EndDate:   dates[len(dates)-1],
		Snapshots: make([]*contracts.PortfolioSnapshot, 0, len(dates)),
		Events:    make([]*contracts.RebalanceEvent, 0, len(dates)),
		Equity:    make([]float64, 0, len(dates)),
	}

	pit := NewPITCache(e.prices, cfg.StartDate, cfg.EndDate)
	prior := contracts.AllCash(dates[0])
	equity := 1.0
	e.state = StateStepping

	for i, asOf := range dates {
		// Cancellation is honored between steps only, so a finished
		// step is never half-written
		if ctx.Err() != nil {
			result.Truncated = true
			break
		}

		// Passive drift since the previous rebalance
		drifted, growth := e.drift(ctx, pit, prior, asOf)
		equity *= growth

		target, event := e.step(ctx, pit, cfg, drifted, asOf)
		if ctx.Err() != nil {
			result.Truncated = true
			break
		}

		equity *= 1.0 - event.TransactionCost

		result.Snapshots = append(result.Snapshots, target)
		result.Events = append(result.Events, event)
		result.Equity = append(result.Equity, equity)
		prior = target

		if e.progress != nil {
			e.progress(i+1, len(dates), asOf, equity)
		}
	}

	e.finalize(ctx, pit, cfg, result)
	return result, nil
}

// step produces the target snapshot and rebalance event for one date.
// A step with wholly unavailable data carries the prior snapshot
// forward unchanged and records a warning instead of aborting.
func (e *Engine) step(ctx context.Context, pit *PITCache, cfg Config, prior *contracts.PortfolioSnapshot, asOf time.Time) (*contracts.PortfolioSnapshot, *contracts.RebalanceEvent) {
	candidates, err := e.source.Candidates(ctx, asOf)
	if err != nil || len(candidates) == 0 {
		return e.skipStep(prior, asOf, "candidate data unavailable")
	}

	outcomes, err := e.evaluator.EvaluateAll(ctx, candidates, asOf)
	if err != nil {
		return e.skipStep(prior, asOf, "scoring round aborted: "+err.Error())
	}

	usable := 0
	for _, o := range outcomes {
		if o.Ok() {
			usable++
		}
	}
	if usable == 0 {
		return e.skipStep(prior, asOf, "no point-in-time scores for any candidate")
	}

	eligible := e.filter.Apply(candidates)
	target := e.constructor.Construct(asOf, eligible)

	event := e.rebalanceEvent(prior, target, cfg.CostBps)
	return target, event
}

// skipStep carries the prior snapshot forward with a warning
func (e *Engine) skipStep(prior *contracts.PortfolioSnapshot, asOf time.Time, reason string) (*contracts.PortfolioSnapshot, *contracts.RebalanceEvent) {
	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"as_of":  asOf.Format("2006-01-02"),
			"reason": reason,
		}).Warn("Rebalance skipped")
	}

	carried := &contracts.PortfolioSnapshot{
		AsOfDate:         asOf,
		Holdings:         copyWeights(prior.Holdings),
		CashWeight:       prior.CashWeight,
		BlendedScores:    prior.BlendedScores,
		Sectors:          prior.Sectors,
		UnderDiversified: prior.UnderDiversified,
		PolicyInfeasible: prior.PolicyInfeasible,
		Warnings:         []string{reason},
	}

	return carried, &contracts.RebalanceEvent{
		AsOfDate: asOf,
		Prior:    prior,
		Target:   carried,
		Trades:   map[string]float64{},
		Skipped:  true,
		Warnings: []string{reason},
	}
}

// rebalanceEvent computes the trade deltas, turnover and transaction
// cost between two snapshots
func (e *Engine) rebalanceEvent(prior, target *contracts.PortfolioSnapshot, costBps float64) *contracts.RebalanceEvent {
	trades := make(map[string]float64)
	for ticker, w := range target.Holdings {
		if delta := w - prior.Weight(ticker); math.Abs(delta) > 1e-12 {
			trades[ticker] = delta
		}
	}
	for ticker, w := range prior.Holdings {
		if _, held := target.Holdings[ticker]; !held && w > 1e-12 {
			trades[ticker] = -w
		}
	}

	turnover := 0.0
	for _, delta := range trades {
		turnover += math.Abs(delta)
	}

	return &contracts.RebalanceEvent{
		AsOfDate:        target.AsOfDate,
		Prior:           prior,
		Target:          target,
		Trades:          trades,
		Turnover:        turnover,
		TransactionCost: turnover * costBps / 10000.0,
	}
}

// drift carries the prior holdings forward under relative price
// movement between the prior date and asOf. Weights are recomputed at
// the rebalance date, never interpolated in between. A held name with
// a price gap keeps its weight and raises a warning.
func (e *Engine) drift(ctx context.Context, pit *PITCache, prior *contracts.PortfolioSnapshot, asOf time.Time) (*contracts.PortfolioSnapshot, float64) {
	if len(prior.Holdings) == 0 || prior.AsOfDate.Equal(asOf) {
		return prior, 1.0
	}

	ratios := make(map[string]float64, len(prior.Holdings))
	growth := prior.CashWeight
	for ticker, w := range prior.Holdings {
		ratio := 1.0
		then, errThen := pit.PriceAsOf(ctx, ticker, prior.AsOfDate)
		now, errNow := pit.PriceAsOf(ctx, ticker, asOf)
		if errThen == nil && errNow == nil && then > 0 {
			ratio = now / then
		} else if e.logger != nil {
			e.logger.WithFields(map[string]interface{}{
				"ticker": ticker,
				"as_of":  asOf.Format("2006-01-02"),
			}).Warn("Price gap while drifting position, holding weight flat")
		}
		ratios[ticker] = ratio
		growth += w * ratio
	}

	if growth <= 0 {
		return prior, 1.0
	}

	drifted := &contracts.PortfolioSnapshot{
		AsOfDate:      prior.AsOfDate,
		Holdings:      make(map[string]float64, len(prior.Holdings)),
		BlendedScores: prior.BlendedScores,
		Sectors:       prior.Sectors,
	}
	for ticker, w := range prior.Holdings {
		drifted.Holdings[ticker] = w * ratios[ticker] / growth
	}
	drifted.CashWeight = prior.CashWeight / growth

	return drifted, growth
}

// finalize attaches performance metrics and seals the run
func (e *Engine) finalize(ctx context.Context, pit *PITCache, cfg Config, result *contracts.BacktestResult) {
	periodsPerYear := 365.25 / float64(cfg.CadenceDays)
	analyzer := analysis.NewAnalyzer(periodsPerYear)

	var benchmark []float64
	if cfg.Benchmark != "" && len(result.Snapshots) > 0 {
		benchmark = e.benchmarkCurve(ctx, pit, cfg.Benchmark, result)
	}

	result.Metrics = analyzer.Analyze(result, benchmark)
	e.state = StateFinalized

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"steps":        result.Steps(),
			"truncated":    result.Truncated,
			"final_equity": result.FinalEquity(),
			"total_return": result.Metrics.TotalReturn,
			"max_drawdown": result.Metrics.MaxDrawdown,
		}).Info("Backtest finalized")
	}
}

// benchmarkCurve builds the benchmark equity curve aligned with the
// run's snapshot dates
func (e *Engine) benchmarkCurve(ctx context.Context, pit *PITCache, ticker string, result *contracts.BacktestResult) []float64 {
	curve := make([]float64, 0, len(result.Snapshots))
	for _, snap := range result.Snapshots {
		p, err := pit.PriceAsOf(ctx, ticker, snap.AsOfDate)
		if err != nil {
			if e.logger != nil {
				e.logger.WithError(err).Warn("Benchmark series incomplete, skipping excess return")
			}
			return nil
		}
		curve = append(curve, p)
	}
	return curve
}

func copyWeights(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
