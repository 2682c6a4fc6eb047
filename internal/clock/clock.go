// Package clock holds the pure time and idle-production math for the economy.
// Nothing here touches storage; callers feed in state and persist the result.
package clock

import (
	"math"
	"time"
)

// ElapsedSeconds clamps now-last to [0, maxWindow]. Negative gaps (clock skew,
// replayed timestamps) count as zero so a login can never owe currency.
func ElapsedSeconds(last, now time.Time, maxWindow time.Duration) int64 {
	if maxWindow < 0 {
		maxWindow = 0
	}
	gap := now.Sub(last)
	if gap < 0 {
		return 0
	}
	if gap > maxWindow {
		gap = maxWindow
	}
	return int64(gap / time.Second)
}

// IdleEarnings computes floor(min((base+worker+facility)*seconds, cap)).
// The cap is a hard per-session ceiling independent of the time clamp, so a
// bad rate in config still cannot pay out unboundedly.
func IdleEarnings(baseRatePerSecond, workerBonusRatePerSecond, facilityBonusRatePerSecond float64, seconds int64, absoluteCapPerSession int64) int64 {
	if seconds <= 0 || absoluteCapPerSession <= 0 {
		return 0
	}
	rate := baseRatePerSecond + workerBonusRatePerSecond + facilityBonusRatePerSecond
	if rate <= 0 {
		return 0
	}
	total := rate * float64(seconds)
	capped := math.Min(total, float64(absoluteCapPerSession))
	return int64(math.Floor(capped))
}

// Worker is one working unit's contribution to the idle rate.
type Worker struct {
	ProductionPerSecond float64
	RarityMultiplier    float64
}

// WorkerBonusRate sums production*multiplier over all working units. A zero
// or negative multiplier is treated as the common-tier 1.0 so an unknown
// breed never rejects a login.
func WorkerBonusRate(workers []Worker) float64 {
	var sum float64
	for _, w := range workers {
		m := w.RarityMultiplier
		if m <= 0 {
			m = 1.0
		}
		if w.ProductionPerSecond <= 0 {
			continue
		}
		sum += w.ProductionPerSecond * m
	}
	return sum
}
