package reward

// boostThreshold splits the table into the donor tiers (below SR) and the
// receiver tiers (SR and up) for rate boosts.
const boostThreshold = RaritySR

// donorFractionPerBoost is how much of the low-tier mass each whole point of
// boost above 1.0 moves upward. A gem ten-pull boost of 1.3 shifts 3% of the
// N/R weight into SR+.
const donorFractionPerBoost = 0.1

// maxDonorFraction caps the shift so even absurd boost values leave half of
// the low-tier mass in place.
const maxDonorFraction = 0.5

// ApplyRateBoost shifts probability mass from tiers below SR into SR and
// above, proportionally to the receivers' existing weights. The returned
// table is explicitly renormalized so its total weight equals the input's
// total exactly; total weight is preserved, never allowed to drift.
func ApplyRateBoost(t Table, boost float64) Table {
	out := make(Table, len(t))
	copy(out, t)
	if boost <= 1.0 || len(t) == 0 {
		return out
	}

	var lowTotal, highTotal, origTotal float64
	for _, e := range t {
		if e.Weight < 0 {
			return out
		}
		origTotal += e.Weight
		if e.Rarity.AtLeast(boostThreshold) {
			highTotal += e.Weight
		} else {
			lowTotal += e.Weight
		}
	}
	if lowTotal <= 0 || highTotal <= 0 {
		return out
	}

	frac := (boost - 1.0) * donorFractionPerBoost
	if frac > maxDonorFraction {
		frac = maxDonorFraction
	}
	moved := lowTotal * frac

	for i := range out {
		if out[i].Rarity.AtLeast(boostThreshold) {
			out[i].Weight += moved * (out[i].Weight / highTotal)
		} else {
			out[i].Weight -= moved * (out[i].Weight / lowTotal)
			if out[i].Weight < 0 {
				out[i].Weight = 0
			}
		}
	}

	// The shift conserves mass already; renormalize anyway so float error
	// cannot accumulate across repeated boosts.
	var newTotal float64
	for _, e := range out {
		newTotal += e.Weight
	}
	if newTotal > 0 && newTotal != origTotal {
		scale := origTotal / newTotal
		for i := range out {
			out[i].Weight *= scale
		}
	}
	return out
}
