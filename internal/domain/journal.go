package domain

import "time"

// TradeRecord is one submitted entry, kept for later review.
type TradeRecord struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Leverage  int       `json:"leverage"`
	StopPrice float64   `json:"stop_price"`
	IsAddOn   bool      `json:"is_add_on"`
	OrderID   int64     `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StopUpdate is one accepted stop replacement.
type StopUpdate struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	OldStop   float64   `json:"old_stop"`
	NewStop   float64   `json:"new_stop"`
	Rule      string    `json:"rule"`
	CreatedAt time.Time `json:"created_at"`
}
