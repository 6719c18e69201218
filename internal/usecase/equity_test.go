package usecase_test

import (
	"context"
	"testing"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDrawdownAndEquityAtRisk(t *testing.T) {
	assert.Zero(t, usecase.Drawdown(0, 100))
	assert.Zero(t, usecase.Drawdown(100, 120), "above peak is no drawdown")
	assert.InDelta(t, 0.25, usecase.Drawdown(200, 150), 1e-12)

	assert.InDelta(t, 100, usecase.EquityAtRisk(300, 0), 1e-9)
	assert.InDelta(t, 25, usecase.EquityAtRisk(300, 0.5), 1e-9)
}

func TestDrawdownThrottle(t *testing.T) {
	prevRisk := usecase.EquityAtRisk(900, 0)
	prevSlots := usecase.Slots(320, 0, 16)
	assert.Equal(t, 20, prevSlots)

	for dd := 0.05; dd < 1; dd += 0.05 {
		risk := usecase.EquityAtRisk(900, dd)
		slots := usecase.Slots(320, dd, 16)
		assert.Less(t, risk, prevRisk, "dd=%v", dd)
		assert.LessOrEqual(t, slots, prevSlots, "dd=%v", dd)
		assert.GreaterOrEqual(t, slots, 1)
		prevRisk, prevSlots = risk, slots
	}

	assert.Equal(t, 5, usecase.Slots(160, 0.5, 16))
	assert.Equal(t, 1, usecase.Slots(10, 0, 16))
	assert.Equal(t, 1, usecase.Slots(160, 0.99, 16))
}

func TestEquityTracker_PeakWatermark(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tracker := usecase.NewEquityTracker(store, zap.NewNop())

	st, err := tracker.Update(ctx, &domain.Account{TotalMarginBalance: 1000, AvailableBalance: 800})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, st.Peak)
	assert.Zero(t, st.Drawdown)
	assert.Equal(t, 500.0, st.Base, "base is capped at half the margin balance")
	assert.InDelta(t, 500.0/3, st.AtRisk, 1e-9)

	st, err = tracker.Update(ctx, &domain.Account{TotalMarginBalance: 900, AvailableBalance: 300})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, st.Peak)
	assert.InDelta(t, 0.1, st.Drawdown, 1e-12)
	assert.Equal(t, 300.0, st.Base)
	assert.InDelta(t, 100*0.81, st.AtRisk, 1e-9)

	// a fresh tracker picks the peak up from the store
	st, err = usecase.NewEquityTracker(store, zap.NewNop()).Update(ctx, &domain.Account{TotalMarginBalance: 950, AvailableBalance: 950})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, st.Peak)
	assert.InDelta(t, 0.05, st.Drawdown, 1e-12)

	var stored float64
	found, err := store.Load(ctx, "peak_equity", &stored)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1000.0, stored)
}
