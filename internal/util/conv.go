package util

import (
	"math"
	"strconv"
)

// RoundHalfUp rounds v to the given number of decimals, halves away from zero.
func RoundHalfUp(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Floor(v*p+0.5) / p
}

// FormatScore renders a score with one decimal, e.g. "3.8". Halves round
// up like RoundHalfUp, so 3.25 renders as "3.3".
func FormatScore(v float64) string {
	return strconv.FormatFloat(RoundHalfUp(v, 1), 'f', 1, 64)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
