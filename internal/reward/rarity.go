package reward

// Rarity is the closed tier enum used by breed tables and guarantees.
// Ordering matters: AtLeast compares by tier index.
type Rarity string

const (
	RarityN   Rarity = "N"
	RarityR   Rarity = "R"
	RaritySR  Rarity = "SR"
	RaritySSR Rarity = "SSR"
	RarityUSR Rarity = "USR"
)

var rarityOrder = map[Rarity]int{
	RarityN:   0,
	RarityR:   1,
	RaritySR:  2,
	RaritySSR: 3,
	RarityUSR: 4,
}

// Known reports whether r is one of the closed tiers.
func (r Rarity) Known() bool {
	_, ok := rarityOrder[r]
	return ok
}

// AtLeast reports whether r is the same tier as min or higher. Unknown
// rarities never qualify.
func (r Rarity) AtLeast(min Rarity) bool {
	ri, ok := rarityOrder[r]
	if !ok {
		return false
	}
	mi, ok := rarityOrder[min]
	if !ok {
		return false
	}
	return ri >= mi
}

// Multiplier is the idle-production step function over tiers. Unknown breeds
// fail open at the common multiplier so a stale config never blocks a login.
func (r Rarity) Multiplier() float64 {
	switch r {
	case RarityR:
		return 1.2
	case RaritySR:
		return 1.4
	case RaritySSR:
		return 1.7
	case RarityUSR:
		return 2.0
	default:
		return 1.0
	}
}
