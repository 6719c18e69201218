// Package indicator holds the pure numeric building blocks of the strategy:
// true range, Wilder ATR, EMA cross counting, volatility and the rounding
// helpers the exchange precision rules need.
package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// Truncate cuts x toward zero to the given number of decimal places.
func Truncate(x float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	f, _ := decimal.NewFromFloat(x).Truncate(int32(places)).Float64()
	return f
}

// RoundTo rounds x half away from zero to the given number of decimal places.
func RoundTo(x float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	f, _ := decimal.NewFromFloat(x).Round(int32(places)).Float64()
	return f
}

// Round6 is the six decimal rounding applied to every RMA step.
func Round6(x float64) float64 {
	return RoundTo(x, 6)
}

// StepCeil returns the smallest multiple of step that is >= x.
func StepCeil(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	s := decimal.NewFromFloat(step)
	n := decimal.NewFromFloat(x).Div(s).Ceil()
	f, _ := n.Mul(s).Float64()
	return f
}

// FormatFixed renders x with exactly places decimals, without rounding up.
func FormatFixed(x float64, places int) string {
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(x).Truncate(int32(places)).StringFixed(int32(places))
}

// FormatPrice renders a price rounded to places decimals.
func FormatPrice(x float64, places int) string {
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(x).StringFixed(int32(places))
}

func almostZero(x float64) bool {
	return math.Abs(x) < 1e-12
}
