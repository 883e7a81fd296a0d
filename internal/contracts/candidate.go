package contracts

// Fundamentals is a point-in-time snapshot of the figures the
// eligibility predicates look at.
type Fundamentals struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
	Beta      float64 `json:"beta"`
	// Annualized volatility of the name itself, when known
	Volatility float64 `json:"volatility,omitempty"`
}

// Candidate is one security under evaluation at one as-of date.
// Eligibility and rejection reasons are set exactly once per
// evaluation by the eligibility filter.
type Candidate struct {
	Ticker       string       `json:"ticker"`
	Name         string       `json:"name,omitempty"`
	Sector       string       `json:"sector"`
	Fundamentals Fundamentals `json:"fundamentals"`

	ScoreSet *ScoreSet `json:"score_set,omitempty"`

	Eligible         bool     `json:"eligible"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
}

// BlendedScore returns the blended score, or 0 when no scoring data exists
func (c *Candidate) BlendedScore() float64 {
	if c.ScoreSet == nil {
		return 0
	}
	return c.ScoreSet.BlendedScore
}

// HasScores reports whether any agent scored this candidate
func (c *Candidate) HasScores() bool {
	return c.ScoreSet != nil && len(c.ScoreSet.Scores) > 0
}
