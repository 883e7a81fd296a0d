package contracts

// InvestorPolicy is the declarative constraint set driving eligibility
// and portfolio construction. Loaded once per run, read-only afterward.
type InvestorPolicy struct {
	MinScoreThreshold float64  `json:"min_score_threshold" yaml:"min_score_threshold"`
	ExcludedSectors   []string `json:"excluded_sectors" yaml:"excluded_sectors"`
	MaxPositionWeight float64  `json:"max_position_weight" yaml:"max_position_weight"`
	MaxSectorWeight   float64  `json:"max_sector_weight" yaml:"max_sector_weight"`
	MaxPositions      int      `json:"max_positions" yaml:"max_positions"`
	MinPositions      int      `json:"min_positions" yaml:"min_positions"`

	// Agent blend weights, key: agent_id. All weights must be > 0.
	AgentWeights map[string]float64 `json:"agent_weights" yaml:"agent_weights"`

	// Suitability predicates beyond score and sector
	MinPrice     float64 `json:"min_price" yaml:"min_price"`
	MinMarketCap float64 `json:"min_market_cap" yaml:"min_market_cap"`
	BetaMin      float64 `json:"beta_min" yaml:"beta_min"`
	BetaMax      float64 `json:"beta_max" yaml:"beta_max"`
}

// IsSectorExcluded checks whether a sector is on the exclusion list
func (p *InvestorPolicy) IsSectorExcluded(sector string) bool {
	for _, s := range p.ExcludedSectors {
		if s == sector {
			return true
		}
	}
	return false
}

// TotalAgentWeight returns the sum of all agent blend weights
func (p *InvestorPolicy) TotalAgentWeight() float64 {
	total := 0.0
	for _, w := range p.AgentWeights {
		total += w
	}
	return total
}
