package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/eligibility"
	"github.com/heliosquant/helios/internal/portfolio"
	"github.com/heliosquant/helios/internal/scoring"
)

// recommendCmd runs one live evaluation round and prints the target
// portfolio
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run one evaluation round and print the target portfolio",
	Long: `Scores the universe as of a date, applies the policy screens and
prints the ranked recommendations with target weights.

Example:
  go run ./cmd/helios recommend
  go run ./cmd/helios recommend --as-of 2024-06-28`,
	RunE: runRecommend,
}

var recommendAsOf string

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringVar(&recommendAsOf, "as-of", "", "evaluation date (YYYY-MM-DD, default today)")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if recommendAsOf != "" {
		if asOf, err = time.Parse("2006-01-02", recommendAsOf); err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
	}

	ctx := cmd.Context()

	candidates, err := rt.source.Candidates(ctx, asOf)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("universe is empty as of %s", asOf.Format("2006-01-02"))
	}

	if _, err := rt.evaluator.EvaluateAll(ctx, candidates, asOf); err != nil {
		return fmt.Errorf("evaluation round: %w", err)
	}

	filter := eligibility.NewFilter(&rt.policyCfg.Policy, rt.log)
	constructor := portfolio.NewConstructor(&rt.policyCfg.Policy, rt.log)

	eligible := filter.Apply(candidates)
	target := constructor.Construct(asOf, eligible)

	sort.Slice(candidates, func(i, j int) bool {
		si, sj := candidates[i].BlendedScore(), candidates[j].BlendedScore()
		if si != sj {
			return si > sj
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})

	fmt.Printf("=== Helios Recommendations (%s) ===\n", asOf.Format("2006-01-02"))
	fmt.Printf("Policy: %s (%s)\n\n", rt.policyCfg.Meta.PolicyID, rt.policyHash[:12])

	fmt.Printf("%-8s %-20s %-12s %7s %6s %-12s %7s\n",
		"TICKER", "NAME", "SECTOR", "SCORE", "CONF", "LABEL", "WEIGHT")
	for _, c := range candidates {
		printCandidate(c, target)
	}

	fmt.Printf("\nPositions: %d  Cash: %.2f%%", target.Count(), target.CashWeight*100)
	if target.UnderDiversified {
		fmt.Print("  [under-diversified]")
	}
	if target.PolicyInfeasible {
		fmt.Print("  [policy caps bind]")
	}
	fmt.Println()
	for _, w := range target.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func printCandidate(c contracts.Candidate, target *contracts.PortfolioSnapshot) {
	label, score, conf := "-", 0.0, 0.0
	if c.HasScores() {
		score = c.ScoreSet.BlendedScore
		conf = c.ScoreSet.Confidence
		label = scoring.Recommendation(score)
	}

	weight := target.Weight(c.Ticker)
	marker := ""
	if !c.Eligible {
		marker = " (" + firstReason(c.RejectionReasons) + ")"
	}

	fmt.Printf("%-8s %-20s %-12s %7.2f %6.2f %-12s %6.2f%%%s\n",
		c.Ticker, truncate(c.Name, 20), truncate(c.Sector, 12),
		score, conf, label, weight*100, marker)
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return "ineligible"
	}
	return reasons[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
