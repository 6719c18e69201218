package indicator

// EMA returns a series aligned with values. Entries before period-1 are 0; the
// entry at period-1 is the simple average of the first period values, and each
// later entry is (v - prev)*2/(period+1) + prev.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for _, v := range values[:period] {
		sum += v
	}
	out[period-1] = sum / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// Crosses counts golden (fast crosses above slow) and death (fast crosses
// below slow) events over the part of the series where both EMAs exist.
func Crosses(closes []float64, fastPeriod, slowPeriod int) (golden, death int) {
	if fastPeriod <= 0 || slowPeriod <= 0 || len(closes) < slowPeriod || len(closes) < fastPeriod {
		return 0, 0
	}
	fast := EMA(closes, fastPeriod)
	slow := EMA(closes, slowPeriod)

	start := slowPeriod - 1
	if fastPeriod > slowPeriod {
		start = fastPeriod - 1
	}

	prevSign := 0
	for i := start; i < len(closes); i++ {
		d := fast[i] - slow[i]
		sign := 0
		switch {
		case almostZero(d):
		case d > 0:
			sign = 1
		default:
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 && sign != prevSign {
			if sign > 0 {
				golden++
			} else {
				death++
			}
		}
		prevSign = sign
	}
	return golden, death
}

// TrendOscillation is the total number of EMA crosses. Low values mean the
// series trended, high values mean it chopped around.
func TrendOscillation(closes []float64, fastPeriod, slowPeriod int) int {
	g, d := Crosses(closes, fastPeriod, slowPeriod)
	return g + d
}
