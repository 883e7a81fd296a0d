package backtest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/evaluate"
	"github.com/heliosquant/helios/internal/schedule"
	"github.com/heliosquant/helios/internal/scoring"
	"github.com/heliosquant/helios/pkg/config"
)

type staticSource struct {
	candidates []contracts.Candidate
	failOn     map[string]bool // YYYY-MM-DD dates that error
}

func (s *staticSource) Candidates(ctx context.Context, asOf time.Time) ([]contracts.Candidate, error) {
	if s.failOn[asOf.Format("2006-01-02")] {
		return nil, fmt.Errorf("upstream outage")
	}
	out := make([]contracts.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}

type staticScores struct {
	id     string
	scores map[string]float64
}

func (p *staticScores) AgentID() string { return p.id }

func (p *staticScores) Score(ctx context.Context, ticker string, asOf time.Time) (contracts.AgentScore, error) {
	score, ok := p.scores[ticker]
	if !ok {
		return contracts.AgentScore{}, &contracts.DataGapError{Ticker: ticker, Reason: "not covered"}
	}
	return contracts.AgentScore{AgentID: p.id, Score: score, ProducedAt: asOf}, nil
}

type flatPrices struct {
	price float64
}

func (p *flatPrices) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]contracts.PricePoint, error) {
	points := make([]contracts.PricePoint, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		points = append(points, contracts.PricePoint{Date: d, Close: p.price})
	}
	return points, nil
}

func testPolicy() *contracts.InvestorPolicy {
	return &contracts.InvestorPolicy{
		MinScoreThreshold: 50,
		MaxPositionWeight: 1.0,
		MaxSectorWeight:   1.0,
		MaxPositions:      5,
		MinPositions:      1,
		AgentWeights:      map[string]float64{"quality": 1.0},
	}
}

func newTestEngine(policy *contracts.InvestorPolicy, source contracts.CandidateSource, prices contracts.PriceProvider, scores map[string]float64) *Engine {
	agg, _ := scoring.NewAggregator(policy.AgentWeights)
	ev := evaluate.New(
		[]contracts.ScoreProvider{&staticScores{id: "quality", scores: scores}},
		agg,
		config.ProviderConfig{CallTimeout: time.Second, MaxConcurrency: 4, RetryBackoff: time.Millisecond},
		nil,
	)
	return NewEngine(policy, source, ev, prices, schedule.NewWeekdayCalendar(), nil)
}

func TestRun_FlatPricesReturnIsNegativeCosts(t *testing.T) {
	source := &staticSource{candidates: []contracts.Candidate{
		{Ticker: "AAA", Sector: "Tech"},
		{Ticker: "BBB", Sector: "Health"},
	}}
	scores := map[string]float64{"AAA": 80, "BBB": 70}

	e := newTestEngine(testPolicy(), source, &flatPrices{price: 100}, scores)

	result, err := e.Run(context.Background(), Config{
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 12, 31),
		CadenceDays: 14,
		CostBps:     15,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Steps() < 20 {
		t.Fatalf("Steps() = %d, want a full year of biweekly steps", result.Steps())
	}

	// Only the first rebalance trades (all-cash to fully invested);
	// with flat prices every later target matches the drifted prior.
	firstCost := result.Events[0].TransactionCost
	if math.Abs(firstCost-1.0*15/10000.0) > 1e-9 {
		t.Errorf("first TransactionCost = %v, want %v", firstCost, 15/10000.0)
	}
	for i, ev := range result.Events[1:] {
		if ev.Turnover > 1e-9 {
			t.Errorf("event %d turnover = %v, want 0 on flat prices", i+1, ev.Turnover)
		}
	}

	if math.Abs(result.Metrics.TotalReturn-(-firstCost)) > 1e-9 {
		t.Errorf("TotalReturn = %v, want %v (negative cumulative costs)", result.Metrics.TotalReturn, -firstCost)
	}
	if result.Metrics.MaxDrawdown > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 0 on flat prices", result.Metrics.MaxDrawdown)
	}
	if result.Truncated {
		t.Error("run must not be truncated")
	}
	if e.State() != StateFinalized {
		t.Errorf("State() = %s, want %s", e.State(), StateFinalized)
	}
}

func TestRun_CancellationTruncates(t *testing.T) {
	source := &staticSource{candidates: []contracts.Candidate{{Ticker: "AAA", Sector: "Tech"}}}
	e := newTestEngine(testPolicy(), source, &flatPrices{price: 50}, map[string]float64{"AAA": 90})

	ctx, cancel := context.WithCancel(context.Background())
	e.WithProgress(func(step, total int, asOf time.Time, equity float64) {
		if step == 4 {
			cancel()
		}
	})

	// 10 weekly Monday steps
	result, err := e.Run(ctx, Config{
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 3, 8),
		CadenceDays: 7,
		CostBps:     10,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Steps() != 4 {
		t.Errorf("Steps() = %d, want exactly 4 completed before cancellation", result.Steps())
	}
	if len(result.Equity) != 4 || len(result.Events) != 4 {
		t.Errorf("equity/events length = %d/%d, want 4/4", len(result.Equity), len(result.Events))
	}
	if !result.Truncated {
		t.Error("Expected truncated flag on cancelled run")
	}
	if e.State() != StateFinalized {
		t.Errorf("State() = %s, want %s (partial results still finalize)", e.State(), StateFinalized)
	}
	if result.Metrics == nil {
		t.Error("Expected metrics on the partial result")
	}
}

func TestRun_MissingDataSkipsStep(t *testing.T) {
	source := &staticSource{
		candidates: []contracts.Candidate{{Ticker: "AAA", Sector: "Tech"}},
		failOn:     map[string]bool{"2024-01-15": true},
	}
	e := newTestEngine(testPolicy(), source, &flatPrices{price: 100}, map[string]float64{"AAA": 90})

	result, err := e.Run(context.Background(), Config{
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 2, 1),
		CadenceDays: 14,
		CostBps:     0,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Dates: 01-01, 01-15, 01-29. The middle step skips.
	if result.Steps() != 3 {
		t.Fatalf("Steps() = %d, want 3", result.Steps())
	}
	skipped := result.Events[1]
	if !skipped.Skipped {
		t.Error("Expected middle event to be marked skipped")
	}
	if len(skipped.Warnings) == 0 {
		t.Error("Expected a warning on the skipped event")
	}
	// Prior holdings carried forward unchanged
	if got := result.Snapshots[1].Weight("AAA"); math.Abs(got-result.Snapshots[0].Weight("AAA")) > 1e-9 {
		t.Errorf("carried weight = %v, want %v", got, result.Snapshots[0].Weight("AAA"))
	}
	// The run recovers on the next step
	if result.Events[2].Skipped {
		t.Error("Expected the step after the outage to rebalance normally")
	}
}

type trendingPrices struct {
	start  float64
	daily  float64 // multiplicative daily growth
	origin time.Time
}

func (p *trendingPrices) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]contracts.PricePoint, error) {
	points := make([]contracts.PricePoint, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days := d.Sub(p.origin).Hours() / 24
		points = append(points, contracts.PricePoint{Date: d, Close: p.start * math.Pow(p.daily, days)})
	}
	return points, nil
}

func TestRun_DriftTracksPrices(t *testing.T) {
	source := &staticSource{candidates: []contracts.Candidate{{Ticker: "AAA", Sector: "Tech"}}}
	prices := &trendingPrices{start: 100, daily: 1.01, origin: day(2024, 1, 1)}
	e := newTestEngine(testPolicy(), source, prices, map[string]float64{"AAA": 90})

	result, err := e.Run(context.Background(), Config{
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 1, 31),
		CadenceDays: 14,
		CostBps:     0,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Dates 01-01, 01-15, 01-29: fully invested in a name compounding
	// 1% a day, so equity is the 28-day price ratio by the final step.
	if result.Steps() != 3 {
		t.Fatalf("Steps() = %d, want 3", result.Steps())
	}
	want := math.Pow(1.01, 28)
	if math.Abs(result.FinalEquity()-want) > 1e-6 {
		t.Errorf("FinalEquity() = %v, want %v", result.FinalEquity(), want)
	}
	// Zero costs and a single holding: turnover after the first step
	// stays zero because the drifted weight is already the target.
	for i, ev := range result.Events[1:] {
		if ev.Turnover > 1e-9 {
			t.Errorf("event %d turnover = %v, want 0", i+1, ev.Turnover)
		}
	}
}

func TestRun_InvalidPolicyFailsFast(t *testing.T) {
	policy := testPolicy()
	policy.MaxPositionWeight = 0 // malformed

	source := &staticSource{candidates: []contracts.Candidate{{Ticker: "AAA", Sector: "Tech"}}}
	e := newTestEngine(policy, source, &flatPrices{price: 100}, map[string]float64{"AAA": 90})

	if _, err := e.Run(context.Background(), Config{
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 2, 1),
		CadenceDays: 14,
	}); err == nil {
		t.Error("Expected configuration error before the first step")
	}
}

func TestRun_BenchmarkExcess(t *testing.T) {
	source := &staticSource{candidates: []contracts.Candidate{{Ticker: "AAA", Sector: "Tech"}}}
	e := newTestEngine(testPolicy(), source, &flatPrices{price: 100}, map[string]float64{"AAA": 90})

	result, err := e.Run(context.Background(), Config{
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 2, 1),
		CadenceDays: 14,
		CostBps:     0,
		Benchmark:   "SPY",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Metrics.BenchmarkReturn == nil || result.Metrics.ExcessReturn == nil {
		t.Fatal("Expected benchmark metrics")
	}
	// Flat benchmark, zero-cost flat run: both returns zero
	if math.Abs(*result.Metrics.BenchmarkReturn) > 1e-9 {
		t.Errorf("BenchmarkReturn = %v, want 0", *result.Metrics.BenchmarkReturn)
	}
	if math.Abs(*result.Metrics.ExcessReturn) > 1e-9 {
		t.Errorf("ExcessReturn = %v, want 0", *result.Metrics.ExcessReturn)
	}
}
