package domain

// Direction is +1 for long and -1 for short.
type Direction int

const (
	DirectionNone  Direction = 0
	DirectionLong  Direction = 1
	DirectionShort Direction = -1
)

// Side maps the direction onto the hedge-mode position side.
func (d Direction) Side() Side {
	if d < 0 {
		return SideShort
	}
	return SideLong
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	}
	return "none"
}

// Signal is the breakout verdict for one snapshot.
type Signal struct {
	Direction    Direction `json:"direction"`
	IsFirstBreak bool      `json:"is_first_break"`
	IsAddOn      bool      `json:"is_add_on"`
}

// Candidate pairs a snapshot with the signal that qualified it.
type Candidate struct {
	Snapshot *SymbolSnapshot
	Signal   Signal
	Position *Position // existing same-side position for add-ons
}

// PreparedOrder is a sized entry ready for submission.
type PreparedOrder struct {
	Symbol            string    `json:"symbol"`
	Direction         Direction `json:"direction"`
	Leverage          int       `json:"leverage"`
	Notional          float64   `json:"notional"`
	Quantity          float64   `json:"quantity"`
	StopPrice         float64   `json:"stop_price"`
	ClosePrice        float64   `json:"close_price"`
	ATR               float64   `json:"atr"`
	IsAddOn           bool      `json:"is_add_on"`
	Whitelisted       bool      `json:"whitelisted"`
	QuantityPrecision int       `json:"quantity_precision"`
	PricePrecision    int       `json:"price_precision"`
	Lot               LotFilter `json:"lot"`
	Isolated          bool      `json:"-"` // symbol already in isolated margin
}
