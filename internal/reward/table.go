package reward

import (
	"encoding/json"
	"errors"
)

var (
	// ErrEmptyTable means the configured table has no drawable weight. This is
	// an operations error, never "no reward"; callers must fail the request.
	ErrEmptyTable     = errors.New("empty_reward_table")
	ErrNegativeWeight = errors.New("negative_weight")
)

// Entry is one weighted row of a reward table.
type Entry struct {
	ID      string          `json:"id"`
	Weight  float64         `json:"weight"`
	Rarity  Rarity          `json:"rarity,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Table is an ordered weighted set. Selection is deterministic given a draw
// in [0, totalWeight): cumulative iteration in declaration order.
type Table []Entry

// TotalWeight sums entry weights, rejecting negatives.
func (t Table) TotalWeight() (float64, error) {
	var total float64
	for _, e := range t {
		if e.Weight < 0 {
			return 0, ErrNegativeWeight
		}
		total += e.Weight
	}
	return total, nil
}

// SelectWeighted picks the first entry whose cumulative weight reaches
// rng.Float64()*totalWeight.
func SelectWeighted(t Table, rng RandomSource) (Entry, error) {
	total, err := t.TotalWeight()
	if err != nil {
		return Entry{}, err
	}
	if len(t) == 0 || total <= 0 {
		return Entry{}, ErrEmptyTable
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	target := rng.Float64() * total
	var cum float64
	for _, e := range t {
		cum += e.Weight
		if target < cum {
			return e, nil
		}
	}
	// float accumulation can leave target == total; last weighted entry wins
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Weight > 0 {
			return t[i], nil
		}
	}
	return Entry{}, ErrEmptyTable
}

// FilterMinRarity returns the subset of entries at or above min.
func (t Table) FilterMinRarity(min Rarity) Table {
	out := make(Table, 0, len(t))
	for _, e := range t {
		if e.Rarity.AtLeast(min) {
			out = append(out, e)
		}
	}
	return out
}
