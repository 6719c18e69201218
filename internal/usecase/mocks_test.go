package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shiki2014/binan/internal/domain"
)

// MockExchange records every call and serves canned market data.
type MockExchange struct {
	mu sync.Mutex

	Klines  map[string][]domain.Kline
	Infos   []domain.SymbolInfo
	Account *domain.Account
	Orders  []domain.OpenOrder

	KlineErr  error
	MarginErr error
	// queued errors, one consumed per call
	MarketErrs []error
	StopErrs   []error
	AckErr     error

	MarginCalls   []string
	LeverageCalls map[string]int
	MarketOrders  []domain.MarketOrderRequest
	StopOrders    []domain.StopOrderRequest
	Cancelled     []int64
	Acks          int
	KlineCalls    int

	nextID int64
}

func NewMockExchange() *MockExchange {
	return &MockExchange{
		Klines:        make(map[string][]domain.Kline),
		Account:       &domain.Account{},
		LeverageCalls: make(map[string]int),
		nextID:        1000,
	}
}

func (m *MockExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KlineCalls++
	if m.KlineErr != nil {
		return nil, m.KlineErr
	}
	kl := m.Klines[symbol]
	if limit > 0 && len(kl) > limit {
		kl = kl[len(kl)-limit:]
	}
	return kl, nil
}

func (m *MockExchange) GetExchangeInfo(ctx context.Context) ([]domain.SymbolInfo, error) {
	return m.Infos, nil
}

func (m *MockExchange) GetAccount(ctx context.Context) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Account, nil
}

func (m *MockExchange) GetOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OpenOrder, len(m.Orders))
	copy(out, m.Orders)
	return out, nil
}

func (m *MockExchange) SetIsolatedMargin(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarginCalls = append(m.MarginCalls, symbol)
	return m.MarginErr
}

func (m *MockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeverageCalls[symbol] = leverage
	return nil
}

func (m *MockExchange) SubmitMarketOrder(ctx context.Context, req domain.MarketOrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarketOrders = append(m.MarketOrders, req)
	if len(m.MarketErrs) > 0 {
		err := m.MarketErrs[0]
		m.MarketErrs = m.MarketErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.nextID++
	return &domain.OrderResult{OrderID: m.nextID, Symbol: req.Symbol, Status: "FILLED", AvgPrice: 100}, nil
}

func (m *MockExchange) SubmitStopOrder(ctx context.Context, req domain.StopOrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopOrders = append(m.StopOrders, req)
	if len(m.StopErrs) > 0 {
		err := m.StopErrs[0]
		m.StopErrs = m.StopErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.nextID++
	now := time.Unix(0, m.nextID)
	m.Orders = append(m.Orders, domain.OpenOrder{
		OrderID:      m.nextID,
		Symbol:       req.Symbol,
		PositionSide: req.PositionSide,
		Type:         "STOP_MARKET",
		StopPrice:    req.StopPrice,
		Time:         now,
	})
	return &domain.OrderResult{OrderID: m.nextID, Symbol: req.Symbol, Status: "NEW", StopPrice: req.StopPrice, Time: now}, nil
}

func (m *MockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, orderID)
	for i, o := range m.Orders {
		if o.OrderID == orderID {
			m.Orders = append(m.Orders[:i], m.Orders[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockExchange) AcknowledgeAgreement(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acks++
	return m.AckErr
}

// MemoryStore is a StateStore over a map of JSON blobs.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (s *MemoryStore) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

// MockTradeRepo collects journal writes.
type MockTradeRepo struct {
	mu      sync.Mutex
	Trades  []*domain.TradeRecord
	Updates []*domain.StopUpdate
}

func (r *MockTradeRepo) SaveTrade(ctx context.Context, trade *domain.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Trades = append(r.Trades, trade)
	return nil
}

func (r *MockTradeRepo) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	return r.Trades, nil
}

func (r *MockTradeRepo) SaveStopUpdate(ctx context.Context, update *domain.StopUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates = append(r.Updates, update)
	return nil
}

func (r *MockTradeRepo) ListStopUpdates(ctx context.Context, limit int) ([]*domain.StopUpdate, error) {
	return r.Updates, nil
}

func bar(open, high, low, close float64) domain.Kline {
	return domain.Kline{Open: open, High: high, Low: low, Close: close, TradeCount: 100}
}

func flatBars(n int) []domain.Kline {
	out := make([]domain.Kline, n)
	for i := range out {
		out[i] = bar(100, 101, 99, 100)
	}
	return out
}

func series(parts ...[]domain.Kline) []domain.Kline {
	var out []domain.Kline
	for _, p := range parts {
		out = append(out, p...)
	}
	for i := range out {
		out[i].OpenTime = int64(i)
	}
	return out
}

func repeat(k domain.Kline, n int) []domain.Kline {
	out := make([]domain.Kline, n)
	for i := range out {
		out[i] = k
	}
	return out
}

func usdtInfo(symbol string) domain.SymbolInfo {
	return domain.SymbolInfo{
		Symbol:            symbol,
		QuoteAsset:        "USDT",
		ContractType:      "PERPETUAL",
		Status:            "TRADING",
		QuantityPrecision: 3,
		PricePrecision:    2,
		Lot:               domain.LotFilter{MinQty: 0.001, MaxQty: 1000, StepSize: 0.001, MinNotional: 5, TickSize: 0.01},
	}
}
