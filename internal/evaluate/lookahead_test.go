package evaluate

import (
	"context"
	"testing"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/internal/scoring"
)

type timestampedProvider struct {
	id         string
	score      float64
	producedAt time.Time
}

func (p *timestampedProvider) AgentID() string { return p.id }

func (p *timestampedProvider) Score(ctx context.Context, ticker string, asOf time.Time) (contracts.AgentScore, error) {
	return contracts.AgentScore{AgentID: p.id, Score: p.score, ProducedAt: p.producedAt}, nil
}

func TestEvaluateAll_RejectsFutureScores(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	agg, _ := scoring.NewAggregator(map[string]float64{"past": 1, "future": 1})

	providers := []contracts.ScoreProvider{
		&timestampedProvider{id: "past", score: 60, producedAt: asOf.AddDate(0, 0, -1)},
		&timestampedProvider{id: "future", score: 99, producedAt: asOf.AddDate(0, 0, 7)},
	}
	e := New(providers, agg, testConfig(), nil)

	cands := candidates("AAA")
	outcomes, err := e.EvaluateAll(context.Background(), cands, asOf)
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}

	if !outcomes[0].Ok() {
		t.Fatalf("outcome is gap: %s", outcomes[0].GapReason)
	}
	// The future-dated score must not enter the blend
	if got := outcomes[0].ScoreSet.BlendedScore; got != 60 {
		t.Errorf("blended = %v, want 60", got)
	}
	if _, present := outcomes[0].ScoreSet.Get("future"); present {
		t.Error("future-dated score must be absent from the score set")
	}
}

func TestEvaluateAll_AcceptsSameDayScores(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	agg, _ := scoring.NewAggregator(map[string]float64{"intraday": 1})

	providers := []contracts.ScoreProvider{
		&timestampedProvider{id: "intraday", score: 70, producedAt: asOf.Add(15 * time.Hour)},
	}
	e := New(providers, agg, testConfig(), nil)

	outcomes, err := e.EvaluateAll(context.Background(), candidates("AAA"), asOf)
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if !outcomes[0].Ok() {
		t.Fatalf("Expected same-day score to be accepted, got gap: %s", outcomes[0].GapReason)
	}
}
