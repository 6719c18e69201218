package usecase

import (
	"math"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
)

// SizerConfig holds the risk constants of the volatility sizing model.
type SizerConfig struct {
	ATRMultiplier float64 // stop distance in ATRs
	RiskFraction  float64 // equity lost when the stop is hit
	Allocation    float64 // margin share of equity per leverage step
	MaxDecline    float64 // above this stop distance leverage is not raised
}

func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		ATRMultiplier: 2.0,
		RiskFraction:  0.02,
		Allocation:    0.1,
		MaxDecline:    0.2,
	}
}

type PositionSizer struct {
	cfg SizerConfig
}

func NewPositionSizer(cfg SizerConfig) *PositionSizer {
	return &PositionSizer{cfg: cfg}
}

// Size turns a candidate into a prepared order sized so that hitting the stop
// costs at most RiskFraction of equity. isolated is the symbol's current
// margin mode. It returns false when the order has to be skipped.
func (s *PositionSizer) Size(c domain.Candidate, equity float64, isolated bool) (*domain.PreparedOrder, bool) {
	snap := c.Snapshot
	dir := c.Signal.Direction
	price := snap.ClosePrice
	if equity <= 0 || price <= 0 || snap.ATR <= 0 || dir == domain.DirectionNone {
		return nil, false
	}

	atrK := s.cfg.ATRMultiplier * snap.ATR
	stop := indicator.RoundTo(price-float64(dir)*atrK, snap.PricePrecision)
	if c.Signal.IsAddOn && c.Position != nil && c.Position.EntryPrice > 0 {
		// never loosen the stop beyond the entry of the position being added to
		if dir == domain.DirectionLong {
			stop = math.Max(stop, c.Position.EntryPrice)
		} else {
			stop = math.Min(stop, c.Position.EntryPrice)
		}
	}
	if stop <= 0 || !stopValid(dir, stop, snap.CurrentPrice) {
		return nil, false
	}

	decline := atrK / price
	var leverage int
	var notional float64
	if decline > s.cfg.MaxDecline {
		leverage = 1
		notional = equity * s.cfg.RiskFraction / decline
	} else {
		leverage = int(math.Floor(s.cfg.RiskFraction / (s.cfg.Allocation * decline)))
		if leverage < 1 {
			leverage = 1
		}
		notional = equity * s.cfg.Allocation * float64(leverage)
	}
	// an add-on cannot lower the leverage of the position it joins; that only
	// changes the margin posted, not the size
	if existing := heldLeverage(c); existing > leverage {
		leverage = existing
	}

	qty := indicator.Truncate(notional/price, snap.QuantityPrecision)
	if qty <= 0 {
		return nil, false
	}
	qty = ClampQuantity(qty, price, snap.Lot)
	if qty <= 0 {
		return nil, false
	}

	return &domain.PreparedOrder{
		Symbol:            snap.Symbol,
		Direction:         dir,
		Leverage:          leverage,
		Notional:          notional,
		Quantity:          qty,
		StopPrice:         stop,
		ClosePrice:        price,
		ATR:               snap.ATR,
		IsAddOn:           c.Signal.IsAddOn,
		Whitelisted:       snap.Whitelisted,
		QuantityPrecision: snap.QuantityPrecision,
		PricePrecision:    snap.PricePrecision,
		Lot:               snap.Lot,
		Isolated:          isolated,
	}, true
}

// heldLeverage is the leverage of the open position an add-on joins, or 1.
// Flat position rows carry the account default and are never consulted.
func heldLeverage(c domain.Candidate) int {
	if c.Signal.IsAddOn && c.Position.Open() && c.Position.Leverage > 0 {
		return c.Position.Leverage
	}
	return 1
}

// ClampQuantity raises qty to the symbol's minimum order size and caps it at
// the maximum. When minQty is too small to meet the minimum notional at
// price, the floor is the smallest step multiple that does.
func ClampQuantity(qty, price float64, lot domain.LotFilter) float64 {
	floor := lot.MinQty
	if lot.MinNotional > 0 && price > 0 && lot.MinQty*price <= lot.MinNotional {
		floor = indicator.StepCeil(lot.MinNotional/price, lot.StepSize)
	}
	if qty < floor {
		qty = floor
	}
	if lot.MaxQty > 0 && qty > lot.MaxQty {
		qty = lot.MaxQty
	}
	return qty
}

// stopValid reports whether stop sits on the protective side of price.
func stopValid(dir domain.Direction, stop, price float64) bool {
	if price <= 0 {
		return true
	}
	if dir == domain.DirectionLong {
		return stop < price
	}
	return stop > price
}
