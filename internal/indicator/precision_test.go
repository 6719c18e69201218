package indicator_test

import (
	"testing"

	"github.com/shiki2014/binan/internal/indicator"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, 1.239, indicator.Truncate(1.2399, 3))
	assert.Equal(t, -1.239, indicator.Truncate(-1.2399, 3), "toward zero for negatives")
	assert.Equal(t, 12.0, indicator.Truncate(12.99, 0))
	assert.Equal(t, 0.3, indicator.Truncate(0.1+0.2, 1))
}

func TestTruncate_Idempotent(t *testing.T) {
	values := []float64{0, 0.1 + 0.2, 1.0 / 3, 2.0 / 3, 123.456789, 98765.4321, 1e-7, 0.000123456, 7.999999999}
	for _, x := range values {
		for p := 0; p <= 8; p++ {
			once := indicator.Truncate(x, p)
			assert.Equal(t, once, indicator.Truncate(once, p), "x=%v p=%d", x, p)
		}
	}
}

func TestRoundAndStep(t *testing.T) {
	assert.Equal(t, 1.24, indicator.RoundTo(1.235, 2))
	assert.Equal(t, 0.123457, indicator.Round6(0.1234567))
	assert.Equal(t, 0.3, indicator.StepCeil(0.21, 0.1))
	assert.Equal(t, 0.2, indicator.StepCeil(0.2, 0.1))
	assert.Equal(t, "0.120", indicator.FormatFixed(0.1209, 3))
	assert.Equal(t, "101.50", indicator.FormatPrice(101.5, 2))
}
