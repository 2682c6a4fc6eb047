package reward

import (
	"math"
	"testing"
)

func recruitTable() Table {
	return Table{
		{ID: "n", Weight: 0.600, Rarity: RarityN},
		{ID: "r", Weight: 0.300, Rarity: RarityR},
		{ID: "sr", Weight: 0.080, Rarity: RaritySR},
		{ID: "ssr", Weight: 0.018, Rarity: RaritySSR},
		{ID: "usr", Weight: 0.002, Rarity: RarityUSR},
	}
}

func totalOf(t Table) float64 {
	var sum float64
	for _, e := range t {
		sum += e.Weight
	}
	return sum
}

func TestApplyRateBoostPreservesTotalWeight(t *testing.T) {
	base := recruitTable()
	origTotal := totalOf(base)
	for _, boost := range []float64{1.0, 1.2, 1.3, 2.0, 10.0} {
		boosted := ApplyRateBoost(base, boost)
		if math.Abs(totalOf(boosted)-origTotal) > 1e-12 {
			t.Fatalf("boost %v drifted total: %v != %v", boost, totalOf(boosted), origTotal)
		}
	}
}

func TestApplyRateBoostShiftsMassUpward(t *testing.T) {
	base := recruitTable()
	boosted := ApplyRateBoost(base, 1.3)

	var baseHigh, boostedHigh float64
	for i, e := range base {
		if e.Rarity.AtLeast(RaritySR) {
			baseHigh += e.Weight
			boostedHigh += boosted[i].Weight
		} else if boosted[i].Weight >= e.Weight {
			t.Fatalf("low tier %s did not shrink: %v -> %v", e.ID, e.Weight, boosted[i].Weight)
		}
	}
	if boostedHigh <= baseHigh {
		t.Fatalf("high tiers did not grow: %v -> %v", baseHigh, boostedHigh)
	}
}

func TestApplyRateBoostNoOpCases(t *testing.T) {
	base := recruitTable()
	tests := []struct {
		name  string
		table Table
		boost float64
	}{
		{name: "boost one", table: base, boost: 1.0},
		{name: "boost below one", table: base, boost: 0.5},
		{name: "no high tiers", table: Table{{ID: "n", Weight: 1, Rarity: RarityN}}, boost: 1.3},
		{name: "no low tiers", table: Table{{ID: "sr", Weight: 1, Rarity: RaritySR}}, boost: 1.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRateBoost(tt.table, tt.boost)
			for i := range tt.table {
				if got[i].Weight != tt.table[i].Weight {
					t.Fatalf("entry %s changed: %v -> %v", tt.table[i].ID, tt.table[i].Weight, got[i].Weight)
				}
			}
		})
	}
}

func TestApplyRateBoostDoesNotMutateInput(t *testing.T) {
	base := recruitTable()
	before := totalOf(base)
	_ = ApplyRateBoost(base, 1.3)
	if totalOf(base) != before || base[0].Weight != 0.600 {
		t.Fatal("input table was mutated")
	}
}

func TestApplyRateBoostCapsDonorFraction(t *testing.T) {
	base := recruitTable()
	boosted := ApplyRateBoost(base, 100)
	var low float64
	for _, e := range boosted {
		if !e.Rarity.AtLeast(RaritySR) {
			low += e.Weight
		}
	}
	// At most half of the 0.9 low-tier mass may move.
	if low < 0.45-1e-9 {
		t.Fatalf("low tier mass %v dropped below the donor cap floor", low)
	}
}
