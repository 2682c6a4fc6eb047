package reward

import (
	"math"
	"testing"
)

func testTable() Table {
	return Table{
		{ID: "A", Weight: 50, Rarity: RarityN},
		{ID: "B", Weight: 30, Rarity: RarityR},
		{ID: "C", Weight: 20, Rarity: RaritySR},
	}
}

func TestSelectWeightedFrequencies(t *testing.T) {
	rng := NewSeededRNG(42)
	table := testTable()
	const draws = 100000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		e, err := SelectWeighted(table, rng)
		if err != nil {
			t.Fatalf("SelectWeighted error: %v", err)
		}
		counts[e.ID]++
	}
	want := map[string]float64{"A": 0.50, "B": 0.30, "C": 0.20}
	for id, p := range want {
		got := float64(counts[id]) / draws
		if math.Abs(got-p) > 0.02 {
			t.Fatalf("frequency of %s = %.4f, want %.2f +/- 0.02", id, got, p)
		}
	}
}

func TestSelectWeightedEmptyTable(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{name: "nil table", table: nil},
		{name: "all zero weights", table: Table{{ID: "A", Weight: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SelectWeighted(tt.table, NewSeededRNG(1)); err != ErrEmptyTable {
				t.Fatalf("err = %v, want ErrEmptyTable", err)
			}
		})
	}
}

func TestSelectWeightedNegativeWeight(t *testing.T) {
	table := Table{{ID: "A", Weight: -1}}
	if _, err := SelectWeighted(table, NewSeededRNG(1)); err != ErrNegativeWeight {
		t.Fatalf("err = %v, want ErrNegativeWeight", err)
	}
}

func TestSelectWeightedZeroWeightNeverDrawn(t *testing.T) {
	table := Table{
		{ID: "dead", Weight: 0},
		{ID: "live", Weight: 1},
	}
	rng := NewSeededRNG(7)
	for i := 0; i < 1000; i++ {
		e, err := SelectWeighted(table, rng)
		if err != nil {
			t.Fatalf("SelectWeighted error: %v", err)
		}
		if e.ID == "dead" {
			t.Fatal("zero-weight entry was drawn")
		}
	}
}

func TestDrawBatchGuaranteeAlwaysHonored(t *testing.T) {
	// Base tiers can never roll SR: the qualifying entry has zero weight.
	table := Table{
		{ID: "common", Weight: 80, Rarity: RarityN},
		{ID: "rare", Weight: 20, Rarity: RarityR},
		{ID: "super", Weight: 0, Rarity: RaritySR},
	}
	rng := NewSeededRNG(99)
	g := &Guarantee{MinRarity: RaritySR}
	for batch := 0; batch < 10000; batch++ {
		res, err := DrawBatch(table, 10, g, rng)
		if err != nil {
			t.Fatalf("DrawBatch error: %v", err)
		}
		qualifying := 0
		for _, e := range res.Entries {
			if e.Rarity.AtLeast(RaritySR) {
				qualifying++
			}
		}
		if qualifying < 1 {
			t.Fatalf("batch %d has no qualifying entry", batch)
		}
		if !res.GuaranteeTriggered {
			t.Fatalf("batch %d: guarantee not reported triggered", batch)
		}
		// Only the last slot may be overwritten.
		for _, e := range res.Entries[:9] {
			if e.Rarity.AtLeast(RaritySR) {
				t.Fatalf("batch %d: pre-pity slot holds a qualifying entry from an impossible roll", batch)
			}
		}
	}
}

func TestDrawBatchGuaranteeNotTriggeredWhenMet(t *testing.T) {
	table := Table{{ID: "super", Weight: 1, Rarity: RaritySR}}
	res, err := DrawBatch(table, 3, &Guarantee{MinRarity: RaritySR}, NewSeededRNG(5))
	if err != nil {
		t.Fatalf("DrawBatch error: %v", err)
	}
	if res.GuaranteeTriggered {
		t.Fatal("guarantee should not trigger when draws already qualify")
	}
}

func TestDrawBatchGuaranteeImpossible(t *testing.T) {
	table := Table{{ID: "common", Weight: 1, Rarity: RarityN}}
	_, err := DrawBatch(table, 10, &Guarantee{MinRarity: RaritySR}, NewSeededRNG(5))
	if err != ErrGuaranteeImpossible {
		t.Fatalf("err = %v, want ErrGuaranteeImpossible", err)
	}
}

func TestDrawBatchSizeValidation(t *testing.T) {
	if _, err := DrawBatch(testTable(), 0, nil, NewSeededRNG(1)); err == nil {
		t.Fatal("expected error for n=0")
	}
}
