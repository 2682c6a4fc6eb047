package session

import (
	"math"
	"time"

	"pawshop-economy/internal/store"
)

// Tunables for the three session kinds. Durations scale from these bases;
// fatigue/mood deltas apply on release in the finishing transaction.
const (
	BaseDeliveryDuration = 300 * time.Second
	MinDurationFraction  = 0.5

	FatigueCeiling = 80

	deliveryFatigueDelta = 10
	fishingFatigueDelta  = -20
	fishingMoodDelta     = 15

	baseDeliveryGoldPerUnit = 150

	baseEventChance = 0.3
	maxEventChance  = 0.9

	baitLuckMultiplier = 1.5

	minFishingMinutes = 10
	maxFishingMinutes = 120

	maxCatchSuccessProb = 0.95
)

// DeliveryDuration shortens the base duration by speed, one percent per
// point, clamped so no stat configuration drives it below half the base.
func DeliveryDuration(base time.Duration, avgSpeed float64) time.Duration {
	factor := 1.0 - avgSpeed/100.0
	if factor < MinDurationFraction {
		factor = MinDurationFraction
	}
	return time.Duration(float64(base) * factor)
}

// EventChance is the probability a choice-bearing event interrupts a
// delivery: 0.3 base plus half a percent per luck point, capped.
func EventChance(avgLuck float64) float64 {
	p := baseEventChance + avgLuck/200.0
	if p > maxEventChance {
		p = maxEventChance
	}
	if p < 0 {
		p = 0
	}
	return p
}

// LuckBonus converts average luck into the fishing multiplier. Bait
// consumed at start stacks multiplicatively.
func LuckBonus(avgLuck float64, baitUsed bool) float64 {
	bonus := 1.0 + avgLuck/100.0
	if baitUsed {
		bonus *= baitLuckMultiplier
	}
	return bonus
}

// CatchAttempts is floor(units * floor(minutes/10) * luckBonus). Ten-minute
// blocks are counted whole, so a 19-minute trip earns one block.
func CatchAttempts(unitCount int, duration time.Duration, luckBonus float64) int {
	if unitCount <= 0 || luckBonus <= 0 {
		return 0
	}
	blocks := math.Floor(duration.Minutes() / 10.0)
	if blocks <= 0 {
		return 0
	}
	return int(math.Floor(float64(unitCount) * blocks * luckBonus))
}

// CatchSuccessProb scales the per-attempt success chance with luck, capped
// so no stat combination makes catches certain.
func CatchSuccessProb(luckBonus float64) float64 {
	p := 0.5 * luckBonus
	if p > maxCatchSuccessProb {
		p = maxCatchSuccessProb
	}
	return p
}

// DeliveryPayout is the plain (no-event) delivery reward: per-unit base gold
// scaled by cooking, one percent per point.
func DeliveryPayout(units []store.WorkUnit) int64 {
	var total float64
	for _, u := range units {
		total += baseDeliveryGoldPerUnit * (1.0 + float64(u.Attributes.Cooking)/100.0)
	}
	return int64(math.Floor(total))
}

func avgAttr(units []store.WorkUnit, pick func(store.UnitAttributes) int) float64 {
	if len(units) == 0 {
		return 0
	}
	var sum int
	for _, u := range units {
		sum += pick(u.Attributes)
	}
	return float64(sum) / float64(len(units))
}

func avgSpeed(units []store.WorkUnit) float64 {
	return avgAttr(units, func(a store.UnitAttributes) int { return a.Speed })
}

func avgLuck(units []store.WorkUnit) float64 {
	return avgAttr(units, func(a store.UnitAttributes) int { return a.Luck })
}
