package scoring

import (
	"fmt"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

// Agent IDs of the standard scoring roster.
const (
	AgentValue          = "value"
	AgentGrowthMomentum = "growth_momentum"
	AgentMacroRegime    = "macro_regime"
	AgentRisk           = "risk"
	AgentSentiment      = "sentiment"
)

// DefaultAgentWeights is the standard blend used when the policy does
// not override agent weights.
var DefaultAgentWeights = map[string]float64{
	AgentValue:          0.20,
	AgentGrowthMomentum: 0.40,
	AgentMacroRegime:    0.10,
	AgentRisk:           0.15,
	AgentSentiment:      0.15,
}

// GapNoScoringData is the rejection reason for candidates no agent
// managed to score.
const GapNoScoringData = "no_scoring_data"

// Aggregator blends per-agent scores into one score per candidate.
// Pure: identical inputs always yield the same blended score.
type Aggregator struct {
	weights map[string]float64
}

// NewAggregator creates an aggregator from an agent weight map.
// Every weight must be positive and the map must not be empty.
func NewAggregator(weights map[string]float64) (*Aggregator, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("agent weight map is empty")
	}
	for agentID, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("agent %q has non-positive weight %v", agentID, w)
		}
	}
	return &Aggregator{weights: weights}, nil
}

// ExpectedAgents returns the number of agents in the weight map
func (a *Aggregator) ExpectedAgents() int {
	return len(a.weights)
}

// Blend combines the agent scores that actually reported into one
// ScoreSet. The denominator covers only present agents, so a missing
// agent reweights the rest instead of dragging the blend toward zero.
// Zero present agents yields a gap outcome, never a default score.
func (a *Aggregator) Blend(ticker string, asOf time.Time, scores []contracts.AgentScore) contracts.ScoreOutcome {
	present := make(map[string]contracts.AgentScore, len(scores))
	for _, s := range scores {
		if _, expected := a.weights[s.AgentID]; !expected {
			// Agent not in the blend, ignore
			continue
		}
		present[s.AgentID] = s
	}

	if len(present) == 0 {
		return contracts.Gap(ticker, GapNoScoringData)
	}

	weightSum := 0.0
	weighted := 0.0
	for agentID, s := range present {
		w := a.weights[agentID]
		weightSum += w
		weighted += w * s.Score
	}

	set := &contracts.ScoreSet{
		Ticker:       ticker,
		AsOfDate:     asOf,
		Scores:       present,
		BlendedScore: weighted / weightSum,
		Confidence:   float64(len(present)) / float64(len(a.weights)),
	}
	return contracts.Scored(set)
}

// ValidateScore checks a raw agent score at the provider boundary.
// Out-of-range scores are rejected here, never clamped downstream.
func ValidateScore(s contracts.AgentScore) error {
	if s.Score < 0 || s.Score > 100 {
		return fmt.Errorf("agent %q score %v out of range [0, 100]", s.AgentID, s.Score)
	}
	return nil
}

// Recommendation maps a blended score to an action label.
func Recommendation(blended float64) string {
	switch {
	case blended >= 80:
		return "STRONG BUY"
	case blended >= 70:
		return "BUY"
	case blended >= 60:
		return "HOLD"
	case blended >= 40:
		return "WEAK HOLD"
	default:
		return "SELL"
	}
}
