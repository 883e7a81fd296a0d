package portfolio

import (
	"sort"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/pkg/logger"
)

const weightEps = 1e-9

// Constructor builds a target portfolio from eligible candidates under
// the investor policy's position and sector caps.
type Constructor struct {
	policy *contracts.InvestorPolicy
	logger *logger.Logger
}

// NewConstructor creates a portfolio constructor
func NewConstructor(policy *contracts.InvestorPolicy, log *logger.Logger) *Constructor {
	return &Constructor{
		policy: policy,
		logger: log,
	}
}

// Construct ranks the eligible candidates and computes capped,
// score-proportional target weights. Ineligible candidates are never
// selected, even when slots remain unfilled. The returned snapshot
// always satisfies the policy's weight invariants; when the caps make
// full allocation impossible the residual goes to cash and the
// snapshot is flagged policy-infeasible instead.
func (c *Constructor) Construct(asOf time.Time, eligible []contracts.Candidate) *contracts.PortfolioSnapshot {
	snap := &contracts.PortfolioSnapshot{
		AsOfDate:      asOf,
		Holdings:      make(map[string]float64),
		BlendedScores: make(map[string]float64),
		Sectors:       make(map[string]string),
		CashWeight:    1.0,
	}

	selected := c.selectTop(eligible)
	if len(selected) < c.policy.MinPositions {
		snap.UnderDiversified = true
	}
	if len(selected) == 0 {
		if c.logger != nil {
			c.logger.WithField("as_of", asOf).Warn("No eligible candidates, portfolio stays in cash")
		}
		return snap
	}

	weights := c.rawWeights(selected)

	capLeftover := c.capPositions(selected, weights)
	sectorLeftover := c.capSectors(selected, weights)

	leftover := capLeftover + sectorLeftover
	if leftover > 1e-6 {
		snap.PolicyInfeasible = true
		snap.Warnings = append(snap.Warnings, "caps left weight unallocated, residual held as cash")
	}

	total := 0.0
	for _, cand := range selected {
		w := weights[cand.Ticker]
		if w <= weightEps {
			continue
		}
		snap.Holdings[cand.Ticker] = w
		snap.BlendedScores[cand.Ticker] = cand.BlendedScore()
		snap.Sectors[cand.Ticker] = cand.Sector
		total += w
	}
	snap.CashWeight = 1.0 - total

	if c.logger != nil {
		c.logger.WithFields(map[string]interface{}{
			"as_of":             asOf,
			"positions":         snap.Count(),
			"total_weight":      total,
			"cash_weight":       snap.CashWeight,
			"under_diversified": snap.UnderDiversified,
			"policy_infeasible": snap.PolicyInfeasible,
		}).Info("Portfolio constructed")
	}

	return snap
}

// selectTop sorts by blended score descending (ties broken by ticker
// for determinism) and keeps the top max_positions.
func (c *Constructor) selectTop(eligible []contracts.Candidate) []contracts.Candidate {
	sorted := make([]contracts.Candidate, len(eligible))
	copy(sorted, eligible)

	sort.Slice(sorted, func(i, j int) bool {
		si, sj := sorted[i].BlendedScore(), sorted[j].BlendedScore()
		if si != sj {
			return si > sj
		}
		return sorted[i].Ticker < sorted[j].Ticker
	})

	n := c.policy.MaxPositions
	if n <= 0 || n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// rawWeights computes score-proportional weights over the selection
func (c *Constructor) rawWeights(selected []contracts.Candidate) map[string]float64 {
	totalScore := 0.0
	for _, cand := range selected {
		totalScore += cand.BlendedScore()
	}

	weights := make(map[string]float64, len(selected))
	if totalScore <= weightEps {
		// Degenerate all-zero scores, fall back to equal weight
		for _, cand := range selected {
			weights[cand.Ticker] = 1.0 / float64(len(selected))
		}
		return weights
	}

	for _, cand := range selected {
		weights[cand.Ticker] = cand.BlendedScore() / totalScore
	}
	return weights
}

// capPositions clamps weights to max_position_weight and redistributes
// the excess proportionally among uncapped names. Bounded fixed point:
// each pass caps at least one new name, so the loop runs at most
// len(selected) times. Returns the weight that could not be placed
// because every name hit the cap.
func (c *Constructor) capPositions(selected []contracts.Candidate, weights map[string]float64) float64 {
	limit := c.policy.MaxPositionWeight
	if limit <= 0 || limit >= 1 {
		return 0
	}

	capped := make(map[string]bool, len(selected))

	for iter := 0; iter < len(selected); iter++ {
		excess := 0.0
		for _, cand := range selected {
			if capped[cand.Ticker] {
				continue
			}
			if w := weights[cand.Ticker]; w > limit+weightEps {
				excess += w - limit
				weights[cand.Ticker] = limit
				capped[cand.Ticker] = true
			}
		}
		if excess <= weightEps {
			return 0
		}

		uncappedSum := 0.0
		for _, cand := range selected {
			if !capped[cand.Ticker] {
				uncappedSum += weights[cand.Ticker]
			}
		}
		if uncappedSum <= weightEps {
			// Everyone is at the cap, nowhere to put the excess
			return excess
		}

		for _, cand := range selected {
			if !capped[cand.Ticker] {
				weights[cand.Ticker] += excess * weights[cand.Ticker] / uncappedSum
			}
		}
	}

	return 0
}

// capSectors scales down any sector whose aggregate weight exceeds
// max_sector_weight and redistributes the freed weight to names in
// sectors with headroom, respecting position caps. Returns the weight
// that had no headroom anywhere.
func (c *Constructor) capSectors(selected []contracts.Candidate, weights map[string]float64) float64 {
	limit := c.policy.MaxSectorWeight
	if limit <= 0 || limit >= 1 {
		return 0
	}

	sectors := sectorList(selected)
	leftover := 0.0

	for iter := 0; iter < len(sectors)+1; iter++ {
		over, agg := c.findOverCapSector(selected, weights, sectors, limit)
		if over == "" {
			break
		}

		scale := limit / agg
		freed := agg - limit
		for _, cand := range selected {
			if cand.Sector == over {
				weights[cand.Ticker] *= scale
			}
		}

		leftover += c.redistribute(selected, weights, freed)
	}

	return leftover
}

// findOverCapSector returns the first sector (alphabetical, for
// determinism) whose aggregate exceeds the cap
func (c *Constructor) findOverCapSector(selected []contracts.Candidate, weights map[string]float64, sectors []string, limit float64) (string, float64) {
	for _, sector := range sectors {
		agg := 0.0
		for _, cand := range selected {
			if cand.Sector == sector {
				agg += weights[cand.Ticker]
			}
		}
		if agg > limit+1e-9 {
			return sector, agg
		}
	}
	return "", 0
}

// redistribute hands amount to names that still have both position-cap
// and sector-cap headroom, proportionally to their current weights.
// Assignment runs in ticker order so results are deterministic.
// Returns whatever could not be placed.
func (c *Constructor) redistribute(selected []contracts.Candidate, weights map[string]float64, amount float64) float64 {
	posCap := c.policy.MaxPositionWeight
	if posCap <= 0 || posCap > 1 {
		posCap = 1.0
	}
	sectorCap := c.policy.MaxSectorWeight
	if sectorCap <= 0 || sectorCap > 1 {
		sectorCap = 1.0
	}

	ordered := make([]contracts.Candidate, len(selected))
	copy(ordered, selected)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ticker < ordered[j].Ticker })

	for iter := 0; iter < len(selected)+1 && amount > weightEps; iter++ {
		sectorAgg := make(map[string]float64)
		for _, cand := range ordered {
			sectorAgg[cand.Sector] += weights[cand.Ticker]
		}

		baseSum := 0.0
		for _, cand := range ordered {
			if posCap-weights[cand.Ticker] > weightEps && sectorCap-sectorAgg[cand.Sector] > weightEps {
				baseSum += weights[cand.Ticker]
			}
		}
		if baseSum <= weightEps {
			break
		}

		placed := 0.0
		for _, cand := range ordered {
			posRoom := posCap - weights[cand.Ticker]
			sectorRoom := sectorCap - sectorAgg[cand.Sector]
			if posRoom <= weightEps || sectorRoom <= weightEps {
				continue
			}

			share := amount * weights[cand.Ticker] / baseSum
			gain := share
			if gain > posRoom {
				gain = posRoom
			}
			if gain > sectorRoom {
				gain = sectorRoom
			}

			weights[cand.Ticker] += gain
			sectorAgg[cand.Sector] += gain
			placed += gain
		}

		amount -= placed
		if placed <= weightEps {
			break
		}
	}

	if amount < 0 {
		amount = 0
	}
	return amount
}

func sectorList(selected []contracts.Candidate) []string {
	seen := make(map[string]bool)
	sectors := make([]string, 0)
	for _, cand := range selected {
		if !seen[cand.Sector] {
			seen[cand.Sector] = true
			sectors = append(sectors, cand.Sector)
		}
	}
	sort.Strings(sectors)
	return sectors
}
