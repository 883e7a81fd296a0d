package policyconfig

import (
	"fmt"

	"github.com/heliosquant/helios/internal/contracts"
)

// ValidationError is a fatal configuration failure, raised at setup
// before any step executes.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the full policy document
func Validate(cfg *Config) error {
	if cfg.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	if err := ValidatePolicy(&cfg.Policy); err != nil {
		return err
	}

	if cfg.Run.CadenceDays <= 0 {
		return ValidationError{"run.cadence_days", "must be > 0"}
	}
	if cfg.Run.CostBps < 0 {
		return ValidationError{"run.cost_bps", "must be >= 0"}
	}
	if cfg.Run.InitialCapital <= 0 {
		return ValidationError{"run.initial_capital", "must be > 0"}
	}

	start, err := cfg.Run.Start()
	if err != nil {
		return ValidationError{"run.start_date", "must be YYYY-MM-DD"}
	}
	end, err := cfg.Run.End()
	if err != nil {
		return ValidationError{"run.end_date", "must be YYYY-MM-DD"}
	}
	if start.After(end) {
		return ValidationError{"run", "start_date must not be after end_date"}
	}

	return nil
}

// ValidatePolicy checks the constraint set alone. Malformed policies
// fail fast here so no backtest step ever runs on one.
func ValidatePolicy(p *contracts.InvestorPolicy) error {
	if p.MinScoreThreshold < 0 || p.MinScoreThreshold > 100 {
		return ValidationError{"policy.min_score_threshold", "must be in [0, 100]"}
	}
	if p.MaxPositionWeight <= 0 || p.MaxPositionWeight > 1 {
		return ValidationError{"policy.max_position_weight", "must be in (0, 1]"}
	}
	if p.MaxSectorWeight <= 0 || p.MaxSectorWeight > 1 {
		return ValidationError{"policy.max_sector_weight", "must be in (0, 1]"}
	}
	if p.MaxPositions <= 0 {
		return ValidationError{"policy.max_positions", "must be > 0"}
	}
	if p.MinPositions < 0 {
		return ValidationError{"policy.min_positions", "must be >= 0"}
	}
	if p.MinPositions > p.MaxPositions {
		return ValidationError{"policy.min_positions", "must not exceed max_positions"}
	}

	if len(p.AgentWeights) == 0 {
		return ValidationError{"policy.agent_weights", "at least one agent weight required"}
	}
	total := 0.0
	for agentID, w := range p.AgentWeights {
		if w <= 0 {
			return ValidationError{"policy.agent_weights." + agentID, "must be > 0"}
		}
		total += w
	}
	if total <= 0 {
		return ValidationError{"policy.agent_weights", "weights must not sum to zero"}
	}

	if p.BetaMax > 0 && p.BetaMin > p.BetaMax {
		return ValidationError{"policy.beta_min", "must not exceed beta_max"}
	}

	return nil
}
