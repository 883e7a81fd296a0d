package contracts

import (
	"testing"
	"time"
)

func TestPortfolioSnapshot_TotalWeight(t *testing.T) {
	snap := &PortfolioSnapshot{
		AsOfDate: time.Now(),
		Holdings: map[string]float64{
			"AAA": 0.4,
			"BBB": 0.35,
			"CCC": 0.25,
		},
	}

	total := snap.TotalWeight()
	epsilon := 0.0001
	if diff := total - 1.0; diff > epsilon || diff < -epsilon {
		t.Errorf("TotalWeight() = %v, want 1.0", total)
	}
}

func TestPortfolioSnapshot_SectorWeight(t *testing.T) {
	snap := &PortfolioSnapshot{
		Holdings: map[string]float64{
			"AAA": 0.3,
			"BBB": 0.3,
			"CCC": 0.2,
		},
		Sectors: map[string]string{
			"AAA": "Tech",
			"BBB": "Tech",
			"CCC": "Health",
		},
	}

	tests := []struct {
		sector string
		want   float64
	}{
		{"Tech", 0.6},
		{"Health", 0.2},
		{"Energy", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.sector, func(t *testing.T) {
			got := snap.SectorWeight(tt.sector)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("SectorWeight(%s) = %v, want %v", tt.sector, got, tt.want)
			}
		})
	}
}

func TestPortfolioSnapshot_IsBalanced(t *testing.T) {
	tests := []struct {
		name string
		snap *PortfolioSnapshot
		want bool
	}{
		{
			name: "holdings plus cash sum to one",
			snap: &PortfolioSnapshot{
				Holdings:   map[string]float64{"AAA": 0.6, "BBB": 0.3},
				CashWeight: 0.1,
			},
			want: true,
		},
		{
			name: "all cash",
			snap: AllCash(time.Now()),
			want: true,
		},
		{
			name: "unbalanced",
			snap: &PortfolioSnapshot{
				Holdings:   map[string]float64{"AAA": 0.6},
				CashWeight: 0.1,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.IsBalanced(); got != tt.want {
				t.Errorf("IsBalanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreOutcome(t *testing.T) {
	set := &ScoreSet{
		Ticker:       "AAPL",
		BlendedScore: 72.5,
		Scores: map[string]AgentScore{
			"value": {AgentID: "value", Score: 72.5},
		},
	}

	ok := Scored(set)
	if !ok.Ok() {
		t.Error("Expected scored outcome to be ok")
	}
	if ok.Ticker != "AAPL" {
		t.Errorf("Got ticker %s, want AAPL", ok.Ticker)
	}

	gap := Gap("MSFT", "no_scoring_data")
	if gap.Ok() {
		t.Error("Expected gap outcome to not be ok")
	}
	if gap.GapReason != "no_scoring_data" {
		t.Errorf("Got reason %s, want no_scoring_data", gap.GapReason)
	}
}

func TestBacktestResult_FinalEquity(t *testing.T) {
	empty := &BacktestResult{}
	if got := empty.FinalEquity(); got != 1.0 {
		t.Errorf("FinalEquity() on empty run = %v, want 1.0", got)
	}

	r := &BacktestResult{Equity: []float64{1.0, 1.02, 0.99}}
	if got := r.FinalEquity(); got != 0.99 {
		t.Errorf("FinalEquity() = %v, want 0.99", got)
	}
}
