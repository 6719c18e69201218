package indicator

import (
	"math"

	"github.com/shiki2014/binan/internal/domain"
)

// TrueRange of cur against the previous bar. The first bar of a series has no
// previous close and uses its own high-low range.
func TrueRange(cur domain.Kline, prev *domain.Kline) float64 {
	hl := cur.High - cur.Low
	if prev == nil {
		return hl
	}
	return math.Max(hl, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// TrueRanges maps a kline series onto its true range series.
func TrueRanges(klines []domain.Kline) []float64 {
	trs := make([]float64, len(klines))
	for i := range klines {
		if i == 0 {
			trs[i] = TrueRange(klines[i], nil)
			continue
		}
		trs[i] = TrueRange(klines[i], &klines[i-1])
	}
	return trs
}

// RMA is Wilder's smoothing over values.
//
// Indices below period are warm-up and stay 0. Index period is seeded with the
// simple average of the first period values; after that
// rma[i] = (values[i-1] + (period-1)*rma[i-1]) / period. Every value is
// rounded to six decimals.
func RMA(values []float64, period int) []float64 {
	rmas := make([]float64, len(values))
	if period <= 0 {
		return rmas
	}
	for i := period; i < len(values); i++ {
		if i == period {
			sum := 0.0
			for _, v := range values[:period] {
				sum += v
			}
			rmas[i] = Round6(sum / float64(period))
			continue
		}
		rmas[i] = Round6((values[i-1] + float64(period-1)*rmas[i-1]) / float64(period))
	}
	return rmas
}

// WilderATR returns the last RMA value of the true range series, or 0 when the
// series is too short to leave warm-up.
func WilderATR(klines []domain.Kline, period int) float64 {
	rmas := RMA(TrueRanges(klines), period)
	if len(rmas) == 0 {
		return 0
	}
	return rmas[len(rmas)-1]
}

// IncrementalATR advances a persisted ATR seed by one true range value.
// A missing seed is passed as 0.
func IncrementalATR(seed, tr float64, period int) float64 {
	if period <= 0 {
		return 0
	}
	return Round6((tr + float64(period-1)*seed) / float64(period))
}
