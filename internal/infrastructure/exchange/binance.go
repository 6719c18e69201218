package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
	"go.uber.org/zap"
)

const (
	BinanceFuturesURL    = "https://fapi.binance.com"
	DefaultAgreementPath = "/fapi/v1/stock/contract"

	codeNoNeedToChangeMargin int64 = -4046
)

// BinanceConfig holds credentials and endpoints for the USDⓈ-M adapter.
type BinanceConfig struct {
	APIKey        string
	APISecret     string
	BaseURL       string
	ProxyURL      string
	AgreementCode int64
	AgreementPath string
}

// BinanceAdapter implements domain.Exchange on top of go-binance futures.
type BinanceAdapter struct {
	client        *futures.Client
	signed        *signedClient
	scheduler     *RequestScheduler
	agreementCode int64
	agreementPath string
	logger        *zap.Logger
}

func NewBinanceAdapter(cfg BinanceConfig, scheduler *RequestScheduler, logger *zap.Logger) (*BinanceAdapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BinanceFuturesURL
	}
	if cfg.AgreementCode == 0 {
		cfg.AgreementCode = DefaultAgreementCode
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	client.BaseURL = cfg.BaseURL
	client.HTTPClient = httpClient

	return &BinanceAdapter{
		client:        client,
		signed:        newSignedClient(cfg.APIKey, cfg.APISecret, cfg.BaseURL, httpClient),
		scheduler:     scheduler,
		agreementCode: cfg.AgreementCode,
		agreementPath: cfg.AgreementPath,
		logger:        logger,
	}, nil
}

// do runs fn through the scheduler and translates SDK errors.
func (b *BinanceAdapter) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := b.scheduler.Do(ctx, name, fn)
	if err != nil {
		return translate(err, b.agreementCode)
	}
	return nil
}

func (b *BinanceAdapter) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	var raw []*futures.Kline
	err := b.do(ctx, "klines", func(ctx context.Context) error {
		var err error
		raw, err = b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	klines := make([]domain.Kline, 0, len(raw))
	for _, k := range raw {
		klines = append(klines, domain.Kline{
			OpenTime:   k.OpenTime,
			Open:       parseFloat(k.Open),
			High:       parseFloat(k.High),
			Low:        parseFloat(k.Low),
			Close:      parseFloat(k.Close),
			Volume:     parseFloat(k.Volume),
			TradeCount: k.TradeNum,
		})
	}
	return klines, nil
}

func (b *BinanceAdapter) GetExchangeInfo(ctx context.Context) ([]domain.SymbolInfo, error) {
	var info *futures.ExchangeInfo
	err := b.do(ctx, "exchangeInfo", func(ctx context.Context) error {
		var err error
		info, err = b.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.SymbolInfo, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, domain.SymbolInfo{
			Symbol:            s.Symbol,
			QuoteAsset:        s.QuoteAsset,
			ContractType:      string(s.ContractType),
			Status:            s.Status,
			QuantityPrecision: s.QuantityPrecision,
			PricePrecision:    s.PricePrecision,
			Lot:               parseLotFilter(s.Filters),
		})
	}
	return out, nil
}

// parseLotFilter reads LOT_SIZE, MIN_NOTIONAL and PRICE_FILTER.
func parseLotFilter(filters []map[string]interface{}) domain.LotFilter {
	var lot domain.LotFilter
	for _, f := range filters {
		switch f["filterType"] {
		case "LOT_SIZE":
			lot.MinQty = parseAny(f["minQty"])
			lot.MaxQty = parseAny(f["maxQty"])
			lot.StepSize = parseAny(f["stepSize"])
		case "MIN_NOTIONAL":
			lot.MinNotional = parseAny(f["notional"])
		case "PRICE_FILTER":
			lot.TickSize = parseAny(f["tickSize"])
		}
	}
	return lot
}

// GetAccount merges the balance summary with the per-side position risk.
func (b *BinanceAdapter) GetAccount(ctx context.Context) (*domain.Account, error) {
	var acc *futures.Account
	err := b.do(ctx, "account", func(ctx context.Context) error {
		var err error
		acc, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var risks []*futures.PositionRisk
	err = b.do(ctx, "positionRisk", func(ctx context.Context) error {
		var err error
		risks, err = b.client.NewGetPositionRiskService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		TotalMarginBalance: parseFloat(acc.TotalMarginBalance),
		AvailableBalance:   parseFloat(acc.AvailableBalance),
		Positions:          make([]*domain.Position, 0, len(risks)),
	}
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		leverage, _ := strconv.Atoi(r.Leverage)
		account.Positions = append(account.Positions, &domain.Position{
			Symbol:           r.Symbol,
			PositionSide:     positionSide(r.PositionSide, amt),
			PositionAmt:      amt,
			EntryPrice:       parseFloat(r.EntryPrice),
			Leverage:         leverage,
			Isolated:         r.MarginType == "isolated",
			IsolatedWallet:   parseFloat(r.IsolatedWallet),
			UnrealizedProfit: parseFloat(r.UnRealizedProfit),
			MarkPrice:        parseFloat(r.MarkPrice),
		})
	}
	return account, nil
}

// positionSide maps one-way mode BOTH onto the side implied by the amount.
func positionSide(side string, amt float64) domain.Side {
	switch side {
	case string(futures.PositionSideTypeLong):
		return domain.SideLong
	case string(futures.PositionSideTypeShort):
		return domain.SideShort
	}
	if amt < 0 {
		return domain.SideShort
	}
	return domain.SideLong
}

func (b *BinanceAdapter) GetOpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var raw []*futures.Order
	err := b.do(ctx, "openOrders", func(ctx context.Context) error {
		var err error
		raw, err = b.client.NewListOpenOrdersService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, domain.OpenOrder{
			OrderID:      o.OrderID,
			Symbol:       o.Symbol,
			PositionSide: positionSide(string(o.PositionSide), 0),
			Type:         string(o.Type),
			StopPrice:    parseFloat(o.StopPrice),
			Time:         time.UnixMilli(o.Time),
		})
	}
	return orders, nil
}

func (b *BinanceAdapter) SetIsolatedMargin(ctx context.Context, symbol string) error {
	err := b.do(ctx, "marginType", func(ctx context.Context) error {
		return b.client.NewChangeMarginTypeService().Symbol(symbol).MarginType(futures.MarginTypeIsolated).Do(ctx)
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeNoNeedToChangeMargin {
		return nil
	}
	return err
}

func (b *BinanceAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return b.do(ctx, "leverage", func(ctx context.Context) error {
		_, err := b.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
		return err
	})
}

// SubmitMarketOrder opens or adds to a hedge-mode position. The client order
// id is fixed before the first attempt so a retried request cannot double fill.
func (b *BinanceAdapter) SubmitMarketOrder(ctx context.Context, req domain.MarketOrderRequest) (*domain.OrderResult, error) {
	side := futures.SideTypeBuy
	if req.PositionSide == domain.SideShort {
		side = futures.SideTypeSell
	}
	clientID := uuid.NewString()
	qty := indicator.FormatFixed(req.Quantity, req.QuantityPrecision)

	var res *futures.CreateOrderResponse
	err := b.do(ctx, "marketOrder", func(ctx context.Context) error {
		var err error
		res, err = b.client.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(side).
			PositionSide(futures.PositionSideType(req.PositionSide)).
			Type(futures.OrderTypeMarket).
			Quantity(qty).
			NewClientOrderID(clientID).
			NewOrderResponseType(futures.NewOrderRespTypeRESULT).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orderResult(res), nil
}

// SubmitStopOrder places a close-position STOP_MARKET triggered on mark price.
func (b *BinanceAdapter) SubmitStopOrder(ctx context.Context, req domain.StopOrderRequest) (*domain.OrderResult, error) {
	side := futures.SideTypeSell
	if req.PositionSide == domain.SideShort {
		side = futures.SideTypeBuy
	}
	clientID := uuid.NewString()
	stop := indicator.FormatPrice(req.StopPrice, req.PricePrecision)

	var res *futures.CreateOrderResponse
	err := b.do(ctx, "stopOrder", func(ctx context.Context) error {
		var err error
		res, err = b.client.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(side).
			PositionSide(futures.PositionSideType(req.PositionSide)).
			Type(futures.OrderTypeStopMarket).
			StopPrice(stop).
			ClosePosition(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			NewClientOrderID(clientID).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orderResult(res), nil
}

func orderResult(res *futures.CreateOrderResponse) *domain.OrderResult {
	return &domain.OrderResult{
		OrderID:   res.OrderID,
		Symbol:    res.Symbol,
		Status:    string(res.Status),
		AvgPrice:  parseFloat(res.AvgPrice),
		StopPrice: parseFloat(res.StopPrice),
		Time:      time.UnixMilli(res.UpdateTime),
	}
}

func (b *BinanceAdapter) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return b.do(ctx, "cancelOrder", func(ctx context.Context) error {
		_, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
		return err
	})
}

// AcknowledgeAgreement signs the trading agreement some contracts require.
func (b *BinanceAdapter) AcknowledgeAgreement(ctx context.Context, symbol string) error {
	if b.agreementPath == "" {
		return fmt.Errorf("agreement required for %s but no acknowledgment endpoint is configured", symbol)
	}
	b.logger.Info("Acknowledging trading agreement", zap.String("symbol", symbol), zap.String("path", b.agreementPath))
	return b.do(ctx, "agreement", func(ctx context.Context) error {
		_, err := b.signed.sendRequest(ctx, http.MethodPost, b.agreementPath, nil)
		return err
	})
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseAny(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	return parseFloat(s)
}
