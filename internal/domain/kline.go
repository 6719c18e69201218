package domain

// Kline is one closed or forming candle, oldest first in every slice.
type Kline struct {
	OpenTime   int64   `json:"open_time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	TradeCount int64   `json:"trade_count"`
}

// SymbolSnapshot is the per-scan view of one symbol built from its klines.
// The last kline is still forming, the one before it is the last closed bar.
type SymbolSnapshot struct {
	Symbol            string
	QuantityPrecision int
	PricePrecision    int
	Lot               LotFilter
	Whitelisted       bool

	HighestPoint float64
	LowestPoint  float64
	ATR          float64

	CurrentPrice float64
	ClosePrice   float64
	OpenPrice    float64
	HighPrice    float64
	LowPrice     float64
	TradeCount   int64
	Amplitude    float64

	TrendOscillation int
	Volatility       float64 // annualized, from the last seed refresh

	Klines     []Kline // trailing lookback+2 window
	FullKlines []Kline // everything that was fetched
}
