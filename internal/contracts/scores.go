package contracts

import "time"

// AgentScore is a single agent's verdict on one candidate at one as-of date.
// Immutable once produced by the provider.
type AgentScore struct {
	AgentID    string    `json:"agent_id"`
	Score      float64   `json:"score"` // 0 ~ 100
	Rationale  string    `json:"rationale"`
	ProducedAt time.Time `json:"produced_at"`
}

// ScoreSet holds all agent scores for one candidate at one as-of date,
// plus the blended score derived from them. A new as-of date produces a
// new ScoreSet; existing ones are never mutated.
type ScoreSet struct {
	Ticker       string                `json:"ticker"`
	AsOfDate     time.Time             `json:"as_of_date"`
	Scores       map[string]AgentScore `json:"scores"` // key: agent_id
	BlendedScore float64               `json:"blended_score"`
	Confidence   float64               `json:"confidence"` // fraction of expected agents that reported
}

// Get returns the score from a specific agent
func (s *ScoreSet) Get(agentID string) (AgentScore, bool) {
	score, exists := s.Scores[agentID]
	return score, exists
}

// Count returns the number of agents that reported
func (s *ScoreSet) Count() int {
	return len(s.Scores)
}

// ScoreOutcome is the per-candidate result of a scoring round:
// either a complete ScoreSet or a gap with a reason. Expected data
// gaps travel through this type, not through errors.
type ScoreOutcome struct {
	Ticker    string    `json:"ticker"`
	ScoreSet  *ScoreSet `json:"score_set,omitempty"`
	GapReason string    `json:"gap_reason,omitempty"`
}

// Ok reports whether the outcome carries a usable ScoreSet
func (o *ScoreOutcome) Ok() bool {
	return o.ScoreSet != nil && o.GapReason == ""
}

// Gap builds a gap outcome for a candidate
func Gap(ticker, reason string) ScoreOutcome {
	return ScoreOutcome{Ticker: ticker, GapReason: reason}
}

// Scored builds a successful outcome for a candidate
func Scored(set *ScoreSet) ScoreOutcome {
	return ScoreOutcome{Ticker: set.Ticker, ScoreSet: set}
}
