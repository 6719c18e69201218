package indicator_test

import (
	"math"
	"testing"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walk builds a deterministic, noisy kline series.
func walk(n int) []domain.Kline {
	klines := make([]domain.Kline, n)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := math.Sin(float64(i)*0.7)*3 + math.Cos(float64(i)*1.3)*1.5
		open := price
		closePrice := price + drift
		high := math.Max(open, closePrice) + 1 + math.Abs(math.Sin(float64(i)))*2
		low := math.Min(open, closePrice) - 1 - math.Abs(math.Cos(float64(i)))*2
		klines[i] = domain.Kline{Open: open, High: high, Low: low, Close: closePrice}
		price = closePrice
	}
	return klines
}

func TestTrueRange(t *testing.T) {
	cur := domain.Kline{High: 110, Low: 100}
	assert.Equal(t, 10.0, indicator.TrueRange(cur, nil))

	prev := domain.Kline{Close: 115}
	assert.Equal(t, 15.0, indicator.TrueRange(cur, &prev), "gap down uses |low-prevClose|")

	prev = domain.Kline{Close: 92}
	assert.Equal(t, 18.0, indicator.TrueRange(cur, &prev), "gap up uses |high-prevClose|")
}

func TestRMA_WarmUpIsZero(t *testing.T) {
	for _, n := range []int{0, 1, 5, 13, 14} {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i + 1)
		}
		rmas := indicator.RMA(values, 14)
		require.Len(t, rmas, n)
		for i, v := range rmas {
			assert.Zero(t, v, "index %d of series length %d", i, n)
		}
	}

	rmas := indicator.RMA([]float64{3, 3, 3, 3, 3, 3, 3}, 5)
	for i := 0; i < 5; i++ {
		assert.Zero(t, rmas[i])
	}
	assert.Equal(t, 3.0, rmas[5])
}

func TestRMA_Recursion(t *testing.T) {
	rmas := indicator.RMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	assert.Equal(t, []float64{0, 0, 0, 2, 2.666667, 3.444445}, rmas)
}

func TestWilderATR_ConstantRange(t *testing.T) {
	klines := make([]domain.Kline, 20)
	for i := range klines {
		klines[i] = domain.Kline{Open: 100, High: 101, Low: 99, Close: 100}
	}
	assert.Equal(t, 2.0, indicator.WilderATR(klines, 14))
	assert.Zero(t, indicator.WilderATR(klines[:14], 14))
}

func TestIncrementalATR_MatchesFullRecompute(t *testing.T) {
	const period = 14
	klines := walk(60)

	for l := period + 1; l < len(klines); l++ {
		seed := indicator.WilderATR(klines[:l], period)
		trs := indicator.TrueRanges(klines[:l])
		full := indicator.WilderATR(klines[:l+1], period)

		assert.Equal(t, full, indicator.IncrementalATR(seed, trs[l-1], period), "length %d", l)
	}
}

func TestIncrementalATR_MissingSeed(t *testing.T) {
	assert.Equal(t, indicator.Round6(7.0/14), indicator.IncrementalATR(0, 7, 14))
	assert.Zero(t, indicator.IncrementalATR(5, 7, 0))
}
