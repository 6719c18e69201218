package indicator

import (
	"math"

	"github.com/shiki2014/binan/internal/domain"
)

// Volatility annualizes the sample standard deviation of log returns.
func Volatility(closes []float64, periodsPerYear float64) float64 {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss/float64(len(returns)-1)) * math.Sqrt(periodsPerYear)
}

// Amplitude is |open-close|/open for a single bar.
func Amplitude(open, close float64) float64 {
	if open == 0 {
		return 0
	}
	return math.Abs(open-close) / open
}

// ClosePrices extracts close prices.
func ClosePrices(klines []domain.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}
