// Package fare derives a trip's fare and the dispatcher/driver revenue split
// from its estimated or actual distance and duration.
package fare

import "math"

const (
	// BaseFareCents, RatePerKmCents and RatePerMinuteCents and MinFareCents
	// are all expressed in integer cents of the local currency unit.
	BaseFareCents       int64 = 5000
	RatePerKmCents      int64 = 1500
	RatePerMinuteCents  int64 = 200
	MinFareCents        int64 = 10000

	// DriverShareNumerator/Denominator is the driver's cut of the fare; the
	// remainder is the dispatcher's commission.
	DriverShareNumerator   = 85
	DriverShareDenominator = 100

	// MaxEarningsCents bounds the saturating lifetime-earnings accumulator.
	MaxEarningsCents int64 = 9_000_000_000_000_000_000
)

// roundCents rounds a fractional cents value half away from zero.
func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

// Derive computes the fare for a trip given its distance and duration,
// applying the minimum-fare floor.
func Derive(distanceKm, durationMin float64) int64 {
	raw := float64(BaseFareCents) + float64(RatePerKmCents)*distanceKm + float64(RatePerMinuteCents)*durationMin
	cents := roundCents(raw)
	if cents < MinFareCents {
		return MinFareCents
	}
	return cents
}

// Split divides a fare into the driver's earnings and the dispatcher's
// commission. Commission is derived as the remainder so the two always sum
// exactly to fareCents, regardless of rounding.
func Split(fareCents int64) (driverEarningsCents, commissionCents int64) {
	driverEarningsCents = roundCents(float64(fareCents) * DriverShareNumerator / DriverShareDenominator)
	commissionCents = fareCents - driverEarningsCents
	return driverEarningsCents, commissionCents
}

// AddEarnings accumulates delta onto a driver's running lifetime earnings,
// saturating at MaxEarningsCents instead of overflowing.
func AddEarnings(current, delta int64) int64 {
	if delta <= 0 {
		return current
	}
	if current > MaxEarningsCents-delta {
		return MaxEarningsCents
	}
	return current + delta
}
