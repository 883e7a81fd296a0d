package analysis

import (
	"math"
	"sort"
)

// CalculateVaR computes historical-simulation Value at Risk from
// period returns. Loss is reported as a positive fraction (0.05 means
// a 5% loss at the given confidence level).
func CalculateVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// (1-confidence) percentile of the sorted returns
	percentile := 1.0 - confidence
	idx := int(math.Floor(percentile * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	if sorted[idx] < 0 {
		return -sorted[idx]
	}
	return 0
}

// CalculateCVaR computes the expected shortfall: the mean loss of the
// tail at and below the VaR percentile.
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	percentile := 1.0 - confidence
	idx := int(math.Floor(percentile * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	sum := 0.0
	count := 0
	for i := 0; i <= idx; i++ {
		sum += sorted[i]
		count++
	}
	if count == 0 {
		return 0
	}
	avg := sum / float64(count)
	if avg < 0 {
		return -avg
	}
	return 0
}
