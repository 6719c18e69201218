package usecase

import (
	"fmt"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
)

// SnapshotConfig holds the window sizes used to turn klines into a snapshot.
type SnapshotConfig struct {
	Lookback  int
	ATRPeriod int
	FastEMA   int
	SlowEMA   int
}

// DefaultSnapshotConfig returns the production window sizes.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Lookback:  20,
		ATRPeriod: 14,
		FastEMA:   10,
		SlowEMA:   20,
	}
}

// Window is the number of bars in one breakout window: the lookback plus the
// last closed bar and the forming bar.
func (c SnapshotConfig) Window() int {
	return c.Lookback + 2
}

type SnapshotBuilder struct {
	cfg SnapshotConfig
}

func NewSnapshotBuilder(cfg SnapshotConfig) *SnapshotBuilder {
	return &SnapshotBuilder{cfg: cfg}
}

// SymbolSeeds are the persisted values of one symbol the builder falls back on.
type SymbolSeeds struct {
	ATR              float64
	TrendOscillation int
	HasOscillation   bool
	Volatility       float64
}

// Build turns a symbol's klines (oldest first, last one still forming) into a
// snapshot. Trend oscillation is counted over every fetched bar. The seeds
// stand in for ATR when the trimmed window is too short for the RMA to warm
// up, and for oscillation when the fetched series is too short for the slow
// EMA to cross at all.
func (b *SnapshotBuilder) Build(info domain.SymbolInfo, klines []domain.Kline, whitelisted bool, seeds SymbolSeeds) (*domain.SymbolSnapshot, error) {
	window := b.cfg.Window()
	if len(klines) < window {
		return nil, fmt.Errorf("%s: %d bars, need %d: %w", info.Symbol, len(klines), window, domain.ErrInsufficientData)
	}

	trimmed := klines[len(klines)-window:]
	reference := trimmed[:window-2]
	closed := trimmed[window-2]
	last := trimmed[window-1]

	highest, lowest := reference[0].High, reference[0].Low
	for _, k := range reference[1:] {
		if k.High > highest {
			highest = k.High
		}
		if k.Low < lowest {
			lowest = k.Low
		}
	}

	atr := indicator.WilderATR(trimmed[:window-1], b.cfg.ATRPeriod)
	if atr == 0 && seeds.ATR > 0 {
		atr = indicator.IncrementalATR(seeds.ATR, indicator.TrueRange(closed, &trimmed[window-3]), b.cfg.ATRPeriod)
	}

	oscillation := indicator.TrendOscillation(indicator.ClosePrices(klines), b.cfg.FastEMA, b.cfg.SlowEMA)
	if len(klines) <= b.cfg.SlowEMA && seeds.HasOscillation {
		oscillation = seeds.TrendOscillation
	}

	return &domain.SymbolSnapshot{
		Symbol:            info.Symbol,
		QuantityPrecision: info.QuantityPrecision,
		PricePrecision:    info.PricePrecision,
		Lot:               info.Lot,
		Whitelisted:       whitelisted,
		HighestPoint:      highest,
		LowestPoint:       lowest,
		ATR:               atr,
		CurrentPrice:      last.Close,
		ClosePrice:        closed.Close,
		OpenPrice:         closed.Open,
		HighPrice:         closed.High,
		LowPrice:          closed.Low,
		TradeCount:        closed.TradeCount,
		Amplitude:         indicator.Amplitude(closed.Open, closed.Close),
		TrendOscillation:  oscillation,
		Volatility:        seeds.Volatility,
		Klines:            trimmed,
		FullKlines:        klines,
	}, nil
}
