package analysis

import (
	"math"

	"github.com/heliosquant/helios/internal/contracts"
)

// Analyzer computes performance metrics from a backtest's equity
// curve. Pure and stateless: everything is recomputable from the
// BacktestResult alone.
type Analyzer struct {
	periodsPerYear float64
}

// NewAnalyzer creates an analyzer. periodsPerYear scales period
// statistics to annual figures (e.g. 26 for a biweekly cadence).
func NewAnalyzer(periodsPerYear float64) *Analyzer {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &Analyzer{periodsPerYear: periodsPerYear}
}

// Analyze computes metrics for the run. benchmark, when non-nil, is an
// equity curve aligned with the result's and enables the excess-return
// figures.
func (a *Analyzer) Analyze(result *contracts.BacktestResult, benchmark []float64) *contracts.PerformanceMetrics {
	m := &contracts.PerformanceMetrics{}

	equity := result.Equity
	if len(equity) == 0 {
		return m
	}

	returns := PeriodReturns(equity)

	m.TotalReturn = equity[len(equity)-1] - 1.0
	m.CAGR = a.cagr(equity)
	m.AnnualizedVolatility = a.annualizedVolatility(returns)
	m.MaxDrawdown = MaxDrawdown(equity)
	m.SharpeRatio = a.sharpe(returns)
	m.SortinoRatio = a.sortino(returns)
	m.WinRate = winRate(returns)
	m.ValueAtRisk95 = CalculateVaR(returns, 0.95)

	if len(benchmark) > 0 {
		bench := benchmark[len(benchmark)-1]/benchmark[0] - 1.0
		excess := m.TotalReturn - bench
		m.BenchmarkReturn = &bench
		m.ExcessReturn = &excess
	}

	return m
}

// PeriodReturns converts an equity curve into period returns
func PeriodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1.0)
	}
	return returns
}

// MaxDrawdown returns the largest peak-to-trough decline of the
// equity curve, as a positive fraction
func MaxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// cagr annualizes the total return over the number of periods
func (a *Analyzer) cagr(equity []float64) float64 {
	periods := len(equity) - 1
	if periods <= 0 || equity[0] <= 0 || equity[len(equity)-1] <= 0 {
		return 0
	}
	years := float64(periods) / a.periodsPerYear
	if years <= 0 {
		return 0
	}
	return math.Pow(equity[len(equity)-1]/equity[0], 1.0/years) - 1.0
}

// annualizedVolatility is the population stdev of period returns
// scaled by sqrt(periods per year)
func (a *Analyzer) annualizedVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return stdev(returns) * math.Sqrt(a.periodsPerYear)
}

func (a *Analyzer) sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	vol := stdev(returns)
	if vol == 0 {
		return 0
	}
	return mean(returns) / vol * math.Sqrt(a.periodsPerYear)
}

// sortino uses downside deviation instead of full volatility
func (a *Analyzer) sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	downside := 0.0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	downside = math.Sqrt(downside / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return mean(returns) / downside * math.Sqrt(a.periodsPerYear)
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the population standard deviation
func stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
