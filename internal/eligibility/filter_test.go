package eligibility

import (
	"testing"

	"github.com/heliosquant/helios/internal/contracts"
)

func scoredCandidate(ticker, sector string, blended float64) contracts.Candidate {
	return contracts.Candidate{
		Ticker: ticker,
		Sector: sector,
		ScoreSet: &contracts.ScoreSet{
			Ticker:       ticker,
			BlendedScore: blended,
			Scores: map[string]contracts.AgentScore{
				"value": {AgentID: "value", Score: blended},
			},
		},
	}
}

func TestEvaluate_AllReasonsRecorded(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MinScoreThreshold: 60,
		ExcludedSectors:   []string{"Tobacco"},
	}
	f := NewFilter(policy, nil)

	// Fails both the score rule and the sector rule: both reasons must
	// be present, in rule order.
	c := scoredCandidate("VICE", "Tobacco", 40)
	f.Evaluate(&c)

	if c.Eligible {
		t.Fatal("Expected candidate to be ineligible")
	}
	want := []string{ReasonScoreBelowMin, ReasonSectorExcluded}
	if len(c.RejectionReasons) != len(want) {
		t.Fatalf("RejectionReasons = %v, want %v", c.RejectionReasons, want)
	}
	for i, r := range want {
		if c.RejectionReasons[i] != r {
			t.Errorf("RejectionReasons[%d] = %q, want %q", i, c.RejectionReasons[i], r)
		}
	}
}

func TestEvaluate_ThresholdInclusive(t *testing.T) {
	policy := &contracts.InvestorPolicy{MinScoreThreshold: 60}
	f := NewFilter(policy, nil)

	exactly := scoredCandidate("EDGE", "Tech", 60)
	f.Evaluate(&exactly)
	if !exactly.Eligible {
		t.Errorf("Candidate exactly at threshold must be eligible, got reasons %v", exactly.RejectionReasons)
	}

	below := scoredCandidate("LOW", "Tech", 59.999)
	f.Evaluate(&below)
	if below.Eligible {
		t.Error("Candidate below threshold must be ineligible")
	}
}

func TestEvaluate_NoScoringData(t *testing.T) {
	policy := &contracts.InvestorPolicy{MinScoreThreshold: 60}
	f := NewFilter(policy, nil)

	c := contracts.Candidate{Ticker: "GHOST", Sector: "Tech"}
	f.Evaluate(&c)

	if c.Eligible {
		t.Fatal("Expected unscored candidate to be ineligible")
	}
	if len(c.RejectionReasons) != 1 || c.RejectionReasons[0] != ReasonNoScoringData {
		t.Errorf("RejectionReasons = %v, want [%s]", c.RejectionReasons, ReasonNoScoringData)
	}
}

func TestEvaluate_SuitabilityPredicates(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MinScoreThreshold: 50,
		MinPrice:          5.0,
		MinMarketCap:      1e9,
		BetaMin:           0.5,
		BetaMax:           2.0,
	}
	f := NewFilter(policy, nil)

	tests := []struct {
		name         string
		fundamentals contracts.Fundamentals
		wantReasons  []string
	}{
		{
			name:         "all pass",
			fundamentals: contracts.Fundamentals{Price: 150, MarketCap: 5e11, Beta: 1.1},
			wantReasons:  nil,
		},
		{
			name:         "penny stock",
			fundamentals: contracts.Fundamentals{Price: 2, MarketCap: 5e11, Beta: 1.1},
			wantReasons:  []string{ReasonPriceBelowMin},
		},
		{
			name:         "micro cap and high beta",
			fundamentals: contracts.Fundamentals{Price: 50, MarketCap: 1e8, Beta: 3.2},
			wantReasons:  []string{ReasonMarketCapBelowMin, ReasonBetaOutOfRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scoredCandidate("TEST", "Tech", 75)
			c.Fundamentals = tt.fundamentals
			f.Evaluate(&c)

			if len(tt.wantReasons) == 0 {
				if !c.Eligible {
					t.Errorf("Expected eligible, got reasons %v", c.RejectionReasons)
				}
				return
			}
			if c.Eligible {
				t.Fatal("Expected ineligible")
			}
			if len(c.RejectionReasons) != len(tt.wantReasons) {
				t.Fatalf("RejectionReasons = %v, want %v", c.RejectionReasons, tt.wantReasons)
			}
			for i, r := range tt.wantReasons {
				if c.RejectionReasons[i] != r {
					t.Errorf("RejectionReasons[%d] = %q, want %q", i, c.RejectionReasons[i], r)
				}
			}
		})
	}
}

func TestApply_ReturnsEligibleSubset(t *testing.T) {
	policy := &contracts.InvestorPolicy{MinScoreThreshold: 60}
	f := NewFilter(policy, nil)

	candidates := []contracts.Candidate{
		scoredCandidate("AAA", "Tech", 90),
		scoredCandidate("BBB", "Tech", 85),
		scoredCandidate("CCC", "Health", 70),
		scoredCandidate("DDD", "Health", 50),
	}

	eligible := f.Apply(candidates)
	if len(eligible) != 3 {
		t.Fatalf("Apply() returned %d eligible, want 3", len(eligible))
	}
	for _, c := range eligible {
		if c.Ticker == "DDD" {
			t.Error("DDD is below threshold and must not be eligible")
		}
	}

	// Evaluation writes back into the input slice too
	if candidates[3].Eligible {
		t.Error("Expected DDD marked ineligible in place")
	}
}

func TestWithPredicate_Extensible(t *testing.T) {
	policy := &contracts.InvestorPolicy{MinScoreThreshold: 0}
	f := NewFilter(policy, nil).WithPredicate(Predicate{
		Name: "max_volatility",
		Check: func(c *contracts.Candidate, p *contracts.InvestorPolicy) string {
			if c.Fundamentals.Volatility > 0.8 {
				return "volatility_above_maximum"
			}
			return ""
		},
	})

	c := scoredCandidate("WILD", "Tech", 95)
	c.Fundamentals.Volatility = 0.95
	f.Evaluate(&c)

	if c.Eligible {
		t.Fatal("Expected custom predicate to reject candidate")
	}
	if c.RejectionReasons[len(c.RejectionReasons)-1] != "volatility_above_maximum" {
		t.Errorf("RejectionReasons = %v, want custom reason last", c.RejectionReasons)
	}
}
