package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/heliosquant/helios/internal/backtest"
	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/data"
)

// backtestCmd groups the backtest subcommands
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Walk-forward backtesting",
	Long: `Simulates the full pipeline over historical data.

A backtest validates:
- total and annualized return against costs
- risk metrics (volatility, Sharpe, Sortino, max drawdown)
- turnover and policy cap behavior

Example:
  go run ./cmd/helios backtest run --from 2023-01-01 --to 2023-12-31
  go run ./cmd/helios backtest run --cadence 14 --cost-bps 15`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Runs a walk-forward backtest over the given window. Flags override
the run parameters in the policy file.

Example:
  go run ./cmd/helios backtest run --from 2023-01-01 --to 2023-12-31
  go run ./cmd/helios backtest run --from 2023-01-01 --benchmark SPY`,
		RunE: runBacktest,
	}

	backtestFrom      string
	backtestTo        string
	backtestCadence   int
	backtestCostBps   float64
	backtestBenchmark string
	backtestSave      bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD, default from policy)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, default from policy)")
	backtestRunCmd.Flags().IntVar(&backtestCadence, "cadence", 0, "rebalance cadence in days (default from policy)")
	backtestRunCmd.Flags().Float64Var(&backtestCostBps, "cost-bps", -1, "transaction cost in basis points of turnover")
	backtestRunCmd.Flags().StringVar(&backtestBenchmark, "benchmark", "", "benchmark ticker for excess return")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the finished run")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, err := backtestConfig(rt)
	if err != nil {
		return err
	}

	fmt.Printf("=== Helios Backtest ===\n")
	fmt.Printf("Policy: %s (%s)\n", rt.policyCfg.Meta.PolicyID, rt.policyHash[:12])
	fmt.Printf("Window: %s -> %s  cadence %dd  cost %.1fbps\n\n",
		cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"),
		cfg.CadenceDays, cfg.CostBps)

	engine := backtest.NewEngine(&rt.policyCfg.Policy, rt.source, rt.evaluator, rt.prices, rt.calendar, rt.log)
	engine.WithProgress(func(step, total int, asOf time.Time, equity float64) {
		fmt.Printf("\rstep %d/%d  %s  equity %.4f", step, total, asOf.Format("2006-01-02"), equity)
	})

	result, err := engine.Run(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	fmt.Println()

	printResult(result)

	if backtestSave {
		rec := &data.RunRecord{
			ID:         newCLIRunID(),
			PolicyID:   rt.policyCfg.Meta.PolicyID,
			PolicyHash: rt.policyHash,
			CreatedAt:  time.Now().UTC(),
			Result:     result,
		}
		if err := rt.resultRepo.Save(cmd.Context(), rec); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
		fmt.Printf("\nSaved as run %s\n", rec.ID)
	}
	return nil
}

// backtestConfig merges the policy file run parameters with flags
func backtestConfig(rt *runtime) (backtest.Config, error) {
	cfg := backtest.Config{
		CadenceDays: rt.policyCfg.Run.CadenceDays,
		CostBps:     rt.policyCfg.Run.CostBps,
		Benchmark:   rt.policyCfg.Run.Benchmark,
	}

	var err error
	if cfg.StartDate, err = rt.policyCfg.Run.Start(); err != nil {
		return cfg, fmt.Errorf("policy start_date: %w", err)
	}
	if cfg.EndDate, err = rt.policyCfg.Run.End(); err != nil {
		return cfg, fmt.Errorf("policy end_date: %w", err)
	}

	if backtestFrom != "" {
		if cfg.StartDate, err = time.Parse("2006-01-02", backtestFrom); err != nil {
			return cfg, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if backtestTo != "" {
		if cfg.EndDate, err = time.Parse("2006-01-02", backtestTo); err != nil {
			return cfg, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if backtestCadence > 0 {
		cfg.CadenceDays = backtestCadence
	}
	if backtestCostBps >= 0 {
		cfg.CostBps = backtestCostBps
	}
	if backtestBenchmark != "" {
		cfg.Benchmark = backtestBenchmark
	}
	return cfg, nil
}

func printResult(result *contracts.BacktestResult) {
	m := result.Metrics

	fmt.Printf("\nSteps: %d", result.Steps())
	if result.Truncated {
		fmt.Print("  [truncated]")
	}
	fmt.Println()

	fmt.Printf("Total return:      %8.2f%%\n", m.TotalReturn*100)
	fmt.Printf("CAGR:              %8.2f%%\n", m.CAGR*100)
	fmt.Printf("Volatility (ann.): %8.2f%%\n", m.AnnualizedVolatility*100)
	fmt.Printf("Max drawdown:      %8.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("Sharpe:            %8.2f\n", m.SharpeRatio)
	fmt.Printf("Sortino:           %8.2f\n", m.SortinoRatio)
	fmt.Printf("Win rate:          %8.2f%%\n", m.WinRate*100)
	fmt.Printf("VaR (95%%):         %8.2f%%\n", m.ValueAtRisk95*100)
	if m.BenchmarkReturn != nil && m.ExcessReturn != nil {
		fmt.Printf("Benchmark return:  %8.2f%%\n", *m.BenchmarkReturn*100)
		fmt.Printf("Excess return:     %8.2f%%\n", *m.ExcessReturn*100)
	}
}

// newCLIRunID returns a 16-hex-char random identifier
func newCLIRunID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
