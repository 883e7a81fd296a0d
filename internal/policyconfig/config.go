package policyconfig

import (
	"time"

	"github.com/heliosquant/helios/internal/contracts"
)

// Config is the full investor policy file: the constraint set plus the
// run parameters a backtest consumes.
type Config struct {
	Meta   Meta                     `json:"meta" yaml:"meta"`
	Policy contracts.InvestorPolicy `json:"policy" yaml:"policy"`
	Run    RunParams                `json:"run" yaml:"run"`
}

// Meta identifies the policy document
type Meta struct {
	PolicyID    string `json:"policy_id" yaml:"policy_id"`
	Description string `json:"description" yaml:"description"`
}

// RunParams holds the operational parameters of a backtest run
type RunParams struct {
	StartDate      string  `json:"start_date" yaml:"start_date"` // YYYY-MM-DD
	EndDate        string  `json:"end_date" yaml:"end_date"`
	CadenceDays    int     `json:"cadence_days" yaml:"cadence_days"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	CostBps        float64 `json:"cost_bps" yaml:"cost_bps"`
	Benchmark      string  `json:"benchmark" yaml:"benchmark"`
}

// Start parses the start date
func (r *RunParams) Start() (time.Time, error) {
	return time.Parse("2006-01-02", r.StartDate)
}

// End parses the end date
func (r *RunParams) End() (time.Time, error) {
	return time.Parse("2006-01-02", r.EndDate)
}
