package domain

import "context"

// Exchange defines the futures exchange operations the bot depends on.
type Exchange interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	GetExchangeInfo(ctx context.Context) ([]SymbolInfo, error)
	GetAccount(ctx context.Context) (*Account, error)
	GetOpenOrders(ctx context.Context) ([]OpenOrder, error)

	SetIsolatedMargin(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (*OrderResult, error)
	SubmitStopOrder(ctx context.Context, req StopOrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	AcknowledgeAgreement(ctx context.Context, symbol string) error
}

// StateStore is a key-value store of JSON blobs (ATR seeds, peak equity, lists, ...).
type StateStore interface {
	// Load decodes the value stored under key into dst. It reports false when the key is absent.
	Load(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, value any) error
}

// TradeRepository defines storage operations for the trade journal.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error)

	SaveStopUpdate(ctx context.Context, update *StopUpdate) error
	ListStopUpdates(ctx context.Context, limit int) ([]*StopUpdate, error)
}
