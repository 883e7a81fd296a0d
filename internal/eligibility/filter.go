package eligibility

import (
	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/pkg/logger"
)

// Filter applies investor-policy constraints to candidates.
// Every applicable rule is evaluated and every failing reason is
// recorded; the filter never short-circuits, so reporting can show the
// complete disqualification picture.
type Filter struct {
	policy     *contracts.InvestorPolicy
	predicates []Predicate
	logger     *logger.Logger
}

// NewFilter creates a filter with the standard predicate set for the
// given policy.
func NewFilter(policy *contracts.InvestorPolicy, log *logger.Logger) *Filter {
	return &Filter{
		policy:     policy,
		predicates: standardPredicates(policy),
		logger:     log,
	}
}

// WithPredicate appends an extra named predicate. Rule evaluation
// order follows insertion order, affecting only reason ordering.
func (f *Filter) WithPredicate(p Predicate) *Filter {
	f.predicates = append(f.predicates, p)
	return f
}

// Evaluate sets Eligible and RejectionReasons on one candidate.
// Thresholds are inclusive: a candidate exactly at min_score_threshold
// passes.
func (f *Filter) Evaluate(c *contracts.Candidate) {
	reasons := make([]string, 0)

	for _, p := range f.predicates {
		if reason := p.Check(c, f.policy); reason != "" {
			reasons = append(reasons, reason)
		}
	}

	c.Eligible = len(reasons) == 0
	c.RejectionReasons = reasons
}

// Apply evaluates every candidate in place and returns the eligible
// subset. Input order is preserved.
func (f *Filter) Apply(candidates []contracts.Candidate) []contracts.Candidate {
	eligible := make([]contracts.Candidate, 0, len(candidates))
	rejected := make(map[string]int) // reason -> count

	for i := range candidates {
		f.Evaluate(&candidates[i])
		if candidates[i].Eligible {
			eligible = append(eligible, candidates[i])
		} else {
			for _, reason := range candidates[i].RejectionReasons {
				rejected[reason]++
			}
		}
	}

	if f.logger != nil {
		f.logger.WithFields(map[string]interface{}{
			"total_input":  len(candidates),
			"eligible":     len(eligible),
			"filtered_out": len(candidates) - len(eligible),
			"reasons":      rejected,
		}).Info("Eligibility filtering completed")
	}

	return eligible
}
