package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Direction returns +1 for LONG and -1 for SHORT.
func (s Side) Direction() Direction {
	if s == SideShort {
		return DirectionShort
	}
	return DirectionLong
}

// Position is the exchange-reported position for one (symbol, side).
// PositionAmt is signed; zero means flat.
type Position struct {
	Symbol           string  `json:"symbol"`
	PositionSide     Side    `json:"position_side"`
	PositionAmt      float64 `json:"position_amt"`
	EntryPrice       float64 `json:"entry_price"`
	Leverage         int     `json:"leverage"`
	Isolated         bool    `json:"isolated"`
	IsolatedWallet   float64 `json:"isolated_wallet"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
	MarkPrice        float64 `json:"mark_price"`
}

// Open reports whether the position holds any size.
func (p *Position) Open() bool {
	return p != nil && p.PositionAmt != 0
}

// Account is the balance summary plus all positions.
type Account struct {
	TotalMarginBalance float64     `json:"total_margin_balance"`
	AvailableBalance   float64     `json:"available_balance"`
	Positions          []*Position `json:"positions"`
}

// OpenPositions returns only positions with non-zero size.
func (a *Account) OpenPositions() []*Position {
	var out []*Position
	for _, p := range a.Positions {
		if p.Open() {
			out = append(out, p)
		}
	}
	return out
}

// FindPosition returns the open position for (symbol, side) or nil.
func (a *Account) FindPosition(symbol string, side Side) *Position {
	for _, p := range a.Positions {
		if p.Symbol == symbol && p.PositionSide == side && p.Open() {
			return p
		}
	}
	return nil
}

// OpenOrder is a resting order, in practice a STOP_MARKET close order.
type OpenOrder struct {
	OrderID      int64     `json:"order_id"`
	Symbol       string    `json:"symbol"`
	PositionSide Side      `json:"position_side"`
	Type         string    `json:"type"`
	StopPrice    float64   `json:"stop_price"`
	Time         time.Time `json:"time"`
}

// MarketOrderRequest opens or adds to a hedge-mode position.
type MarketOrderRequest struct {
	Symbol            string
	PositionSide      Side
	Quantity          float64
	QuantityPrecision int
	Leverage          int
}

// StopOrderRequest places a close-position STOP_MARKET order.
type StopOrderRequest struct {
	Symbol         string
	PositionSide   Side
	StopPrice      float64
	PricePrecision int
}

// OrderResult is what the exchange returned for an accepted order.
type OrderResult struct {
	OrderID   int64
	Symbol    string
	Status    string
	AvgPrice  float64
	StopPrice float64
	Time      time.Time
}

// MarginIsolated reports whether the exchange has symbol in isolated margin.
// The margin mode is per symbol, so flat position rows report it too.
func (a *Account) MarginIsolated(symbol string) bool {
	for _, p := range a.Positions {
		if p.Symbol == symbol && p.Isolated {
			return true
		}
	}
	return false
}
