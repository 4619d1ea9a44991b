package convert

import (
	"math"
)

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(decimals)) / math.Pow10(decimals)
}

func KWToMW(kw float64) float64 {
	return kw / 1000
}

// Ratio divides numerator by denominator, with NaN for a zero or NaN denominator.
func Ratio(numerator, denominator float64) float64 {
	if denominator == 0 || math.IsNaN(denominator) {
		return math.NaN()
	}
	return numerator / denominator
}
