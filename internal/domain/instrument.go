package domain

// LotFilter carries the exchange order constraints for one symbol.
type LotFilter struct {
	MinQty      float64 `json:"min_qty"`
	MaxQty      float64 `json:"max_qty"`
	StepSize    float64 `json:"step_size"`
	MinNotional float64 `json:"min_notional"`
	TickSize    float64 `json:"tick_size"`
}

// SymbolInfo is the parsed exchangeInfo record for a tradable contract.
type SymbolInfo struct {
	Symbol            string    `json:"symbol"`
	QuoteAsset        string    `json:"quote_asset"`
	ContractType      string    `json:"contract_type"`
	Status            string    `json:"status"`
	QuantityPrecision int       `json:"quantity_precision"`
	PricePrecision    int       `json:"price_precision"`
	Lot               LotFilter `json:"lot"`
}

// Tradable reports whether the contract is a USDT perpetual that currently trades.
func (s SymbolInfo) Tradable() bool {
	return s.Status == "TRADING" && s.ContractType == "PERPETUAL" && s.QuoteAsset == "USDT"
}
