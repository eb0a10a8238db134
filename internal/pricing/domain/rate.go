// Package domain defines facility rate tables.
package domain

import (
	"cmp"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strings"
)

var (
	ErrInvalidThreshold   = errors.New("invalid_minutes_threshold")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrDuplicateThreshold = errors.New("duplicate_minutes_threshold")
)

// RateTier charges Price (minor units) for any stay up to and including
// MinutesThreshold minutes.
type RateTier struct {
	MinutesThreshold float64 `json:"minutes_threshold"`
	Price            int64   `json:"price"`
}

// infiniteThreshold is the JSON spelling of a tier without an upper bound.
const infiniteThreshold = "inf"

func (t RateTier) MarshalJSON() ([]byte, error) {
	var threshold any = t.MinutesThreshold
	if math.IsInf(t.MinutesThreshold, 1) {
		threshold = infiniteThreshold
	}
	return json.Marshal(struct {
		MinutesThreshold any   `json:"minutes_threshold"`
		Price            int64 `json:"price"`
	}{threshold, t.Price})
}

// UnmarshalJSON accepts a number or "inf" for minutes_threshold.
func (t *RateTier) UnmarshalJSON(data []byte) error {
	var raw struct {
		MinutesThreshold json.RawMessage `json:"minutes_threshold"`
		Price            int64           `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = RateTier{Price: raw.Price}
	if len(raw.MinutesThreshold) == 0 || string(raw.MinutesThreshold) == "null" {
		return nil
	}

	var word string
	if err := json.Unmarshal(raw.MinutesThreshold, &word); err == nil {
		if !strings.EqualFold(strings.TrimPrefix(word, "+"), infiniteThreshold) {
			return ErrInvalidThreshold
		}
		t.MinutesThreshold = math.Inf(1)
		return nil
	}
	return json.Unmarshal(raw.MinutesThreshold, &t.MinutesThreshold)
}

// RateTable is the tier list of one facility. The tier with the largest
// threshold doubles as the flat rate for stays longer than every threshold.
type RateTable []RateTier

func (t RateTable) Validate() error {
	seen := make(map[float64]struct{}, len(t))
	for _, tier := range t {
		if math.IsNaN(tier.MinutesThreshold) || tier.MinutesThreshold <= 0 {
			return ErrInvalidThreshold
		}
		if tier.Price < 0 {
			return ErrInvalidPrice
		}
		if _, ok := seen[tier.MinutesThreshold]; ok {
			return ErrDuplicateThreshold
		}
		seen[tier.MinutesThreshold] = struct{}{}
	}
	return nil
}

// Sorted returns a copy ordered by ascending threshold.
func (t RateTable) Sorted() RateTable {
	out := slices.Clone(t)
	slices.SortStableFunc(out, func(a, b RateTier) int {
		return cmp.Compare(a.MinutesThreshold, b.MinutesThreshold)
	})
	return out
}

type Engine interface {
	ComputeFee(elapsedMinutes float64, tiers RateTable) int64
}
