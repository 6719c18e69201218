package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const keyPeakEquity = "peak_equity"

// EquityState is the account view the sizing and slot logic work from.
type EquityState struct {
	Current  float64 `json:"current"`
	Peak     float64 `json:"peak"`
	Drawdown float64 `json:"drawdown"`
	Base     float64 `json:"base"`
	AtRisk   float64 `json:"at_risk"`
}

// Drawdown is the fractional fall of current below peak, never negative.
func Drawdown(peak, current float64) float64 {
	if peak <= 0 {
		return 0
	}
	return math.Max(0, (peak-current)/peak)
}

// EquityAtRisk splits the base three ways and throttles it quadratically by
// drawdown.
func EquityAtRisk(base, drawdown float64) float64 {
	k := 1 - drawdown
	return base / 3 * k * k
}

// EquityTracker keeps the persisted peak equity watermark.
type EquityTracker struct {
	store  domain.StateStore
	logger *zap.Logger

	mu   sync.Mutex
	peak float64
}

func NewEquityTracker(store domain.StateStore, logger *zap.Logger) *EquityTracker {
	return &EquityTracker{store: store, logger: logger}
}

// Update folds the account into the peak watermark and returns the equity
// state for this round. The peak only ever moves up.
func (t *EquityTracker) Update(ctx context.Context, account *domain.Account) (EquityState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.peak == 0 {
		var stored float64
		if _, err := t.store.Load(ctx, keyPeakEquity, &stored); err != nil {
			return EquityState{}, fmt.Errorf("load peak equity: %w", err)
		}
		t.peak = stored
	}

	current := account.TotalMarginBalance
	if current > t.peak {
		t.peak = current
		if err := t.store.Save(ctx, keyPeakEquity, t.peak); err != nil {
			return EquityState{}, fmt.Errorf("save peak equity: %w", err)
		}
		t.logger.Info("New equity peak", zap.Float64("peak", t.peak))
	}

	base := math.Min(account.AvailableBalance, account.TotalMarginBalance/2)
	dd := Drawdown(t.peak, current)
	state := EquityState{
		Current:  current,
		Peak:     t.peak,
		Drawdown: dd,
		Base:     base,
		AtRisk:   EquityAtRisk(base, dd),
	}

	metrics.Equity.Set(state.Current)
	metrics.Drawdown.Set(state.Drawdown)
	metrics.EquityAtRisk.Set(state.AtRisk)
	return state, nil
}
