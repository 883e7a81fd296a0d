package eligibility

import "github.com/heliosquant/helios/internal/contracts"

// Rejection reasons recorded by the standard predicates.
const (
	ReasonNoScoringData     = "no_scoring_data"
	ReasonScoreBelowMin     = "score_below_threshold"
	ReasonSectorExcluded    = "sector_excluded"
	ReasonPriceBelowMin     = "price_below_minimum"
	ReasonMarketCapBelowMin = "market_cap_below_minimum"
	ReasonBetaOutOfRange    = "beta_out_of_range"
)

// Predicate is one named eligibility rule. Check returns a rejection
// reason, or "" when the candidate passes.
type Predicate struct {
	Name  string
	Check func(c *contracts.Candidate, p *contracts.InvestorPolicy) string
}

// standardPredicates builds the rule set for a policy, in evaluation
// order: score threshold, sector exclusion, then suitability checks.
// Suitability rules apply only when the policy sets a bound.
func standardPredicates(policy *contracts.InvestorPolicy) []Predicate {
	preds := []Predicate{
		{
			Name: "min_score",
			Check: func(c *contracts.Candidate, p *contracts.InvestorPolicy) string {
				if !c.HasScores() {
					return ReasonNoScoringData
				}
				if c.BlendedScore() < p.MinScoreThreshold {
					return ReasonScoreBelowMin
				}
				return ""
			},
		},
		{
			Name: "excluded_sectors",
			Check: func(c *contracts.Candidate, p *contracts.InvestorPolicy) string {
				if p.IsSectorExcluded(c.Sector) {
					return ReasonSectorExcluded
				}
				return ""
			},
		},
	}

	if policy.MinPrice > 0 {
		preds = append(preds, Predicate{
			Name: "min_price",
			Check: func(c *contracts.Candidate, p *contracts.InvestorPolicy) string {
				if c.Fundamentals.Price < p.MinPrice {
					return ReasonPriceBelowMin
				}
				return ""
			},
		})
	}

	if policy.MinMarketCap > 0 {
		preds = append(preds, Predicate{
			Name: "min_market_cap",
			Check: func(c *contracts.Candidate, p *contracts.InvestorPolicy) string {
				if c.Fundamentals.MarketCap < p.MinMarketCap {
					return ReasonMarketCapBelowMin
				}
				return ""
			},
		})
	}

	if policy.BetaMax > 0 {
		preds = append(preds, Predicate{
			Name: "beta_range",
			Check: func(c *contracts.Candidate, p *contracts.InvestorPolicy) string {
				if c.Fundamentals.Beta < p.BetaMin || c.Fundamentals.Beta > p.BetaMax {
					return ReasonBetaOutOfRange
				}
				return ""
			},
		})
	}

	return preds
}
