package domain

import "math"

// Amounts are int64 minor currency units (paise). Percent operations round
// half-up to the nearest minor unit; the rounding mode is load-bearing and
// covered by tests.

// RoundHalfUp rounds to the nearest integer with ties away from zero for
// positive values.
func RoundHalfUp(value float64) int64 {
	if value < 0 {
		return -int64(math.Floor(-value + 0.5))
	}
	return int64(math.Floor(value + 0.5))
}

// ApplyPercent scales amount by (1 + percent/100) and rounds half-up.
// Negative percents reduce the amount.
func ApplyPercent(amount int64, percent float64) int64 {
	return RoundHalfUp(float64(amount) * (1 + percent/100))
}

// PercentOf returns percent% of amount, rounded half-up.
func PercentOf(amount int64, percent float64) int64 {
	return RoundHalfUp(float64(amount) * percent / 100)
}

// ClampMin returns amount, never below floor.
func ClampMin(amount, floor int64) int64 {
	if amount < floor {
		return floor
	}
	return amount
}
