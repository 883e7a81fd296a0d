package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

func candidate(ticker, sector string, blended float64) contracts.Candidate {
	return contracts.Candidate{
		Ticker:   ticker,
		Sector:   sector,
		Eligible: true,
		ScoreSet: &contracts.ScoreSet{
			Ticker:       ticker,
			BlendedScore: blended,
			Scores: map[string]contracts.AgentScore{
				"value": {AgentID: "value", Score: blended},
			},
		},
	}
}

func assertInvariants(t *testing.T, snap *contracts.PortfolioSnapshot, policy *contracts.InvestorPolicy) {
	t.Helper()

	if !snap.IsBalanced() {
		t.Errorf("holdings %v + cash %v do not sum to 1", snap.TotalWeight(), snap.CashWeight)
	}
	for ticker, w := range snap.Holdings {
		if w < 0 {
			t.Errorf("%s has negative weight %v", ticker, w)
		}
		if policy.MaxPositionWeight > 0 && w > policy.MaxPositionWeight+1e-6 {
			t.Errorf("%s weight %v exceeds position cap %v", ticker, w, policy.MaxPositionWeight)
		}
	}
	if policy.MaxSectorWeight > 0 {
		seen := map[string]bool{}
		for _, sector := range snap.Sectors {
			if seen[sector] {
				continue
			}
			seen[sector] = true
			if agg := snap.SectorWeight(sector); agg > policy.MaxSectorWeight+1e-6 {
				t.Errorf("sector %s aggregate %v exceeds cap %v", sector, agg, policy.MaxSectorWeight)
			}
		}
	}
}

// The worked example: DDD is never handed to the constructor (it fails
// the score threshold upstream), Tech breaches the 0.6 sector cap and
// the excess flows to CCC.
func TestConstruct_SectorCapRedistribution(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MinScoreThreshold: 60,
		MaxPositions:      3,
		MinPositions:      1,
		MaxPositionWeight: 0.5,
		MaxSectorWeight:   0.6,
	}
	c := NewConstructor(policy, nil)

	eligible := []contracts.Candidate{
		candidate("AAA", "Tech", 90),
		candidate("BBB", "Tech", 85),
		candidate("CCC", "Health", 70),
	}

	snap := c.Construct(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), eligible)
	assertInvariants(t, snap, policy)

	if snap.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", snap.Count())
	}

	tech := snap.SectorWeight("Tech")
	if tech > 0.6+1e-6 {
		t.Errorf("Tech aggregate = %v, want <= 0.6", tech)
	}
	// The freed Tech weight must land on CCC
	if snap.Weight("CCC") <= 70.0/245.0 {
		t.Errorf("CCC weight = %v, expected above its raw proportional %v", snap.Weight("CCC"), 70.0/245.0)
	}
	if math.Abs(snap.TotalWeight()-1.0) > 1e-6 {
		t.Errorf("TotalWeight() = %v, want fully invested", snap.TotalWeight())
	}
	if snap.UnderDiversified || snap.PolicyInfeasible {
		t.Errorf("unexpected flags: under_diversified=%v policy_infeasible=%v",
			snap.UnderDiversified, snap.PolicyInfeasible)
	}
}

func TestConstruct_PositionCapClampAndRedistribute(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MaxPositions:      3,
		MinPositions:      1,
		MaxPositionWeight: 0.4,
	}
	c := NewConstructor(policy, nil)

	// Raw weights: 0.6, 0.25, 0.15. Clamping the first to 0.4 frees
	// 0.2, which goes to the other two proportionally; neither breaches
	// the cap afterward.
	eligible := []contracts.Candidate{
		candidate("BIG", "Tech", 120),
		candidate("MID", "Health", 50),
		candidate("SML", "Energy", 30),
	}

	snap := c.Construct(time.Now(), eligible)
	assertInvariants(t, snap, policy)

	if got := snap.Weight("BIG"); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("BIG weight = %v, want clamped to 0.4", got)
	}
	if math.Abs(snap.TotalWeight()-1.0) > 1e-9 {
		t.Errorf("TotalWeight() = %v, want 1.0", snap.TotalWeight())
	}
	// Redistribution keeps the survivors' relative proportions
	ratio := snap.Weight("MID") / snap.Weight("SML")
	if math.Abs(ratio-50.0/30.0) > 1e-9 {
		t.Errorf("MID/SML ratio = %v, want %v", ratio, 50.0/30.0)
	}
}

func TestConstruct_AllAtCapResidualToCash(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MaxPositions:      2,
		MinPositions:      3,
		MaxPositionWeight: 0.3,
	}
	c := NewConstructor(policy, nil)

	eligible := []contracts.Candidate{
		candidate("AAA", "Tech", 80),
		candidate("BBB", "Health", 80),
	}

	snap := c.Construct(time.Now(), eligible)
	assertInvariants(t, snap, policy)

	// Both names clamp at 0.3, the remaining 0.4 has no home
	if math.Abs(snap.CashWeight-0.4) > 1e-6 {
		t.Errorf("CashWeight = %v, want 0.4", snap.CashWeight)
	}
	if !snap.PolicyInfeasible {
		t.Error("Expected policy_infeasible flag when caps strand weight in cash")
	}
	if !snap.UnderDiversified {
		t.Error("Expected under_diversified flag with 2 positions under min 3")
	}
}

func TestConstruct_TiesBrokenByTicker(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MaxPositions: 2,
		MinPositions: 1,
	}
	c := NewConstructor(policy, nil)

	eligible := []contracts.Candidate{
		candidate("ZZZ", "Tech", 75),
		candidate("AAA", "Tech", 75),
		candidate("MMM", "Tech", 75),
	}

	snap := c.Construct(time.Now(), eligible)
	if snap.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", snap.Count())
	}
	if _, held := snap.Holdings["AAA"]; !held {
		t.Error("Expected AAA selected on lexical tie break")
	}
	if _, held := snap.Holdings["MMM"]; !held {
		t.Error("Expected MMM selected on lexical tie break")
	}
	if _, held := snap.Holdings["ZZZ"]; held {
		t.Error("ZZZ must lose the lexical tie break")
	}
}

func TestConstruct_NoEligibleCandidates(t *testing.T) {
	policy := &contracts.InvestorPolicy{MaxPositions: 5, MinPositions: 2}
	c := NewConstructor(policy, nil)

	snap := c.Construct(time.Now(), nil)
	if snap.Count() != 0 {
		t.Errorf("Count() = %d, want 0", snap.Count())
	}
	if snap.CashWeight != 1.0 {
		t.Errorf("CashWeight = %v, want 1.0", snap.CashWeight)
	}
	if !snap.UnderDiversified {
		t.Error("Expected under_diversified flag for empty portfolio")
	}
}

func TestConstruct_FewerEligibleThanMaxPositions(t *testing.T) {
	policy := &contracts.InvestorPolicy{
		MaxPositions: 10,
		MinPositions: 1,
	}
	c := NewConstructor(policy, nil)

	eligible := []contracts.Candidate{
		candidate("AAA", "Tech", 90),
		candidate("BBB", "Health", 60),
	}

	snap := c.Construct(time.Now(), eligible)
	if snap.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (never force-fill slots)", snap.Count())
	}

	// Score-proportional: 90/150 and 60/150
	if got := snap.Weight("AAA"); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("AAA weight = %v, want 0.6", got)
	}
	if got := snap.Weight("BBB"); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("BBB weight = %v, want 0.4", got)
	}
}

func TestConstruct_ZeroScoresEqualWeight(t *testing.T) {
	policy := &contracts.InvestorPolicy{MaxPositions: 2, MinPositions: 1}
	c := NewConstructor(policy, nil)

	eligible := []contracts.Candidate{
		candidate("AAA", "Tech", 0),
		candidate("BBB", "Health", 0),
	}

	snap := c.Construct(time.Now(), eligible)
	if got := snap.Weight("AAA"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("AAA weight = %v, want 0.5 equal-weight fallback", got)
	}
}

func TestConstruct_InvariantsAcrossPolicies(t *testing.T) {
	policies := []*contracts.InvestorPolicy{
		{MaxPositions: 3, MinPositions: 1, MaxPositionWeight: 0.35, MaxSectorWeight: 0.5},
		{MaxPositions: 5, MinPositions: 2, MaxPositionWeight: 0.25, MaxSectorWeight: 0.4},
		{MaxPositions: 2, MinPositions: 1, MaxPositionWeight: 0.9, MaxSectorWeight: 0.9},
	}

	eligible := []contracts.Candidate{
		candidate("AAA", "Tech", 95),
		candidate("BBB", "Tech", 88),
		candidate("CCC", "Tech", 81),
		candidate("DDD", "Health", 74),
		candidate("EEE", "Energy", 67),
	}

	for _, policy := range policies {
		c := NewConstructor(policy, nil)
		snap := c.Construct(time.Now(), eligible)
		assertInvariants(t, snap, policy)
	}
}
