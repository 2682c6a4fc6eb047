package reward

import "errors"

// ErrGuaranteeImpossible means the table has no entry meeting the guarantee
// tier, so the pity slot cannot be filled. Configuration error.
var ErrGuaranteeImpossible = errors.New("guarantee_impossible")

// Guarantee forces at least one entry of MinRarity or better per batch.
type Guarantee struct {
	MinRarity Rarity
}

// BatchResult carries the drawn entries plus whether the pity override fired.
type BatchResult struct {
	Entries            []Entry
	GuaranteeTriggered bool
}

// DrawBatch draws n independent SelectWeighted results. The guarantee is a
// soft pity applied after all n draws: only when no draw qualifies is the
// LAST slot overwritten with a uniform pick from the qualifying subset, so
// the first n-1 draws keep exactly their configured probabilities.
func DrawBatch(t Table, n int, guarantee *Guarantee, rng RandomSource) (BatchResult, error) {
	if n <= 0 {
		return BatchResult{}, ErrEmptyTable
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := SelectWeighted(t, rng)
		if err != nil {
			return BatchResult{}, err
		}
		entries = append(entries, e)
	}
	res := BatchResult{Entries: entries}
	if guarantee == nil {
		return res, nil
	}
	for _, e := range entries {
		if e.Rarity.AtLeast(guarantee.MinRarity) {
			return res, nil
		}
	}
	qualifying := t.FilterMinRarity(guarantee.MinRarity)
	if len(qualifying) == 0 {
		return BatchResult{}, ErrGuaranteeImpossible
	}
	pick := int(rng.Float64() * float64(len(qualifying)))
	if pick >= len(qualifying) {
		pick = len(qualifying) - 1
	}
	entries[len(entries)-1] = qualifying[pick]
	res.GuaranteeTriggered = true
	return res, nil
}
