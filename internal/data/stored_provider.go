package data

import (
	"context"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

// StoredScoreProvider serves one agent's persisted scores as a
// contracts.ScoreProvider. Agents write their scores out of band; a
// missing row is a data gap, never an invented score.
type StoredScoreProvider struct {
	repo    *ScoreRepository
	agentID string
}

// NewStoredScoreProvider creates a provider reading agentID's stored
// scores
func NewStoredScoreProvider(repo *ScoreRepository, agentID string) *StoredScoreProvider {
	return &StoredScoreProvider{repo: repo, agentID: agentID}
}

// AgentID returns the agent this provider serves
func (p *StoredScoreProvider) AgentID() string {
	return p.agentID
}

// Score returns the stored score for a ticker and date
func (p *StoredScoreProvider) Score(ctx context.Context, ticker string, asOf time.Time) (contracts.AgentScore, error) {
	set, err := p.repo.GetByTickerAndDate(ctx, ticker, asOf)
	if err != nil {
		return contracts.AgentScore{}, err
	}

	score, ok := set.Get(p.agentID)
	if !ok {
		return contracts.AgentScore{}, &contracts.DataGapError{
			Ticker: ticker,
			Reason: "no stored score for agent " + p.agentID,
		}
	}
	return score, nil
}
