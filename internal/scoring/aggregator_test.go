package scoring

import (
	"testing"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

func equalWeights(agents ...string) map[string]float64 {
	weights := make(map[string]float64, len(agents))
	for _, a := range agents {
		weights[a] = 1.0
	}
	return weights
}

func TestNewAggregator_Invalid(t *testing.T) {
	if _, err := NewAggregator(nil); err == nil {
		t.Error("Expected error for empty weight map")
	}
	if _, err := NewAggregator(map[string]float64{"value": 0}); err == nil {
		t.Error("Expected error for zero weight")
	}
	if _, err := NewAggregator(map[string]float64{"value": -1}); err == nil {
		t.Error("Expected error for negative weight")
	}
}

func TestBlend_MissingAgentReweights(t *testing.T) {
	// 5 expected agents, only 4 report, all at 80 with equal weights.
	// The blend must be 80, not 64: the denominator excludes the
	// missing agent.
	agg, err := NewAggregator(equalWeights("a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	scores := []contracts.AgentScore{
		{AgentID: "a", Score: 80},
		{AgentID: "b", Score: 80},
		{AgentID: "c", Score: 80},
		{AgentID: "d", Score: 80},
	}

	out := agg.Blend("AAPL", time.Now(), scores)
	if !out.Ok() {
		t.Fatalf("Blend() returned gap: %s", out.GapReason)
	}

	if got := out.ScoreSet.BlendedScore; got != 80 {
		t.Errorf("BlendedScore = %v, want 80", got)
	}
	if got := out.ScoreSet.Confidence; got != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", got)
	}
}

func TestBlend_WeightedAverage(t *testing.T) {
	agg, err := NewAggregator(DefaultAgentWeights)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	scores := []contracts.AgentScore{
		{AgentID: AgentValue, Score: 60},
		{AgentID: AgentGrowthMomentum, Score: 90},
		{AgentID: AgentMacroRegime, Score: 50},
		{AgentID: AgentRisk, Score: 70},
		{AgentID: AgentSentiment, Score: 80},
	}

	out := agg.Blend("MSFT", time.Now(), scores)
	if !out.Ok() {
		t.Fatalf("Blend() returned gap: %s", out.GapReason)
	}

	expected := 60*0.20 + 90*0.40 + 50*0.10 + 70*0.15 + 80*0.15
	got := out.ScoreSet.BlendedScore
	epsilon := 0.0001
	if diff := got - expected; diff > epsilon || diff < -epsilon {
		t.Errorf("BlendedScore = %v, want %v", got, expected)
	}
	if out.ScoreSet.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", out.ScoreSet.Confidence)
	}
}

func TestBlend_NoAgents(t *testing.T) {
	agg, _ := NewAggregator(DefaultAgentWeights)

	out := agg.Blend("NVDA", time.Now(), nil)
	if out.Ok() {
		t.Fatal("Expected gap outcome for zero agents")
	}
	if out.GapReason != GapNoScoringData {
		t.Errorf("GapReason = %q, want %q", out.GapReason, GapNoScoringData)
	}
}

func TestBlend_IgnoresUnknownAgents(t *testing.T) {
	agg, _ := NewAggregator(equalWeights("value", "risk"))

	scores := []contracts.AgentScore{
		{AgentID: "value", Score: 70},
		{AgentID: "mystery", Score: 10},
	}

	out := agg.Blend("TSLA", time.Now(), scores)
	if !out.Ok() {
		t.Fatalf("Blend() returned gap: %s", out.GapReason)
	}
	if got := out.ScoreSet.BlendedScore; got != 70 {
		t.Errorf("BlendedScore = %v, want 70 (unknown agent must not contribute)", got)
	}
}

func TestBlend_Deterministic(t *testing.T) {
	agg, _ := NewAggregator(DefaultAgentWeights)
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	scores := []contracts.AgentScore{
		{AgentID: AgentValue, Score: 55.5},
		{AgentID: AgentRisk, Score: 62.25},
	}

	first := agg.Blend("AMZN", asOf, scores)
	for i := 0; i < 10; i++ {
		again := agg.Blend("AMZN", asOf, scores)
		if again.ScoreSet.BlendedScore != first.ScoreSet.BlendedScore {
			t.Fatalf("Blend() not deterministic: %v vs %v",
				again.ScoreSet.BlendedScore, first.ScoreSet.BlendedScore)
		}
	}
}

func TestValidateScore(t *testing.T) {
	tests := []struct {
		name    string
		score   float64
		wantErr bool
	}{
		{"lower bound", 0, false},
		{"upper bound", 100, false},
		{"mid", 55.5, false},
		{"negative", -1, true},
		{"over", 100.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScore(contracts.AgentScore{AgentID: "value", Score: tt.score})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScore(%v) error = %v, wantErr %v", tt.score, err, tt.wantErr)
			}
		})
	}
}

func TestRecommendation(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{85, "STRONG BUY"},
		{80, "STRONG BUY"},
		{75, "BUY"},
		{60, "HOLD"},
		{45, "WEAK HOLD"},
		{20, "SELL"},
	}

	for _, tt := range tests {
		if got := Recommendation(tt.score); got != tt.want {
			t.Errorf("Recommendation(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
