package service

import (
	"github.com/railzwaylabs/parkway/internal/pricing/domain"
)

type Engine struct{}

func New() domain.Engine {
	return Engine{}
}

// ComputeFee returns the price of the first tier whose threshold is at least
// elapsedMinutes. Stays beyond every threshold pay the largest-threshold
// tier; an empty table charges nothing.
func (Engine) ComputeFee(elapsedMinutes float64, tiers domain.RateTable) int64 {
	if len(tiers) == 0 {
		return 0
	}

	sorted := tiers.Sorted()
	for _, tier := range sorted {
		if elapsedMinutes <= tier.MinutesThreshold {
			return tier.Price
		}
	}
	return sorted[len(sorted)-1].Price
}
