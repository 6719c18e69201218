package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
	"github.com/shiki2014/binan/internal/infrastructure/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome statuses reported per prepared order.
const (
	StatusSubmitted   = "submitted"
	StatusDryRun      = "dry_run"
	StatusEntryFailed = "entry_failed"
	StatusStopFailed  = "stop_failed"
	StatusSkipped     = "skipped"
)

type OrchestratorConfig struct {
	SlotDivisor int     // tradable symbols per concurrent slot
	MaxWeight   float64 // weight of the best ranked order
	MinWeight   float64 // weight of the worst ranked order
	StopBuffer  float64 // fractional nudge away from the fill for a stop that would trigger
	Concurrency int
	DryRun      bool
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		SlotDivisor: 16,
		MaxWeight:   1.2,
		MinWeight:   0.8,
		StopBuffer:  0.002,
		Concurrency: 8,
	}
}

// OrderOutcome is what happened to one prepared order.
type OrderOutcome struct {
	Symbol      string           `json:"symbol"`
	Direction   domain.Direction `json:"direction"`
	Quantity    float64          `json:"quantity"`
	Leverage    int              `json:"leverage"`
	StopPrice   float64          `json:"stop_price"`
	IsAddOn     bool             `json:"is_add_on"`
	OrderID     int64            `json:"order_id,omitempty"`
	StopOrderID int64            `json:"stop_order_id,omitempty"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
}

// Slots is how many orders one scan may place: one per SlotDivisor tradable
// symbols, shrunk by drawdown, never fewer than one.
func Slots(universe int, drawdown float64, divisor int) int {
	if divisor <= 0 {
		divisor = 1
	}
	n := int(math.Floor(float64(universe) / float64(divisor) * (1 - drawdown)))
	if n < 1 {
		return 1
	}
	return n
}

// Weights falls linearly from max for the best ranked order to min for the
// last. A single order gets weight 1.
func Weights(n int, max, min float64) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{1}
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = max - (max-min)*float64(i)/float64(n-1)
	}
	return w
}

// NudgeStop moves a stop that would trigger immediately to buffer away from
// reference, keeping it on the protective side.
func NudgeStop(dir domain.Direction, stop, reference, buffer float64, pricePrecision int) float64 {
	if dir == domain.DirectionLong {
		return indicator.RoundTo(math.Min(stop, reference*(1-buffer)), pricePrecision)
	}
	return indicator.RoundTo(math.Max(stop, reference*(1+buffer)), pricePrecision)
}

// OrderOrchestrator selects and weights the ranked orders and submits them.
type OrderOrchestrator struct {
	exchange domain.Exchange
	trades   domain.TradeRepository
	logger   *zap.Logger
	cfg      OrchestratorConfig
}

func NewOrderOrchestrator(exchange domain.Exchange, trades domain.TradeRepository, logger *zap.Logger, cfg OrchestratorConfig) *OrderOrchestrator {
	return &OrderOrchestrator{
		exchange: exchange,
		trades:   trades,
		logger:   logger,
		cfg:      cfg,
	}
}

// Plan keeps the first slots orders and scales each by its rank weight. It
// returns the orders to submit and outcomes for everything it dropped.
func (o *OrderOrchestrator) Plan(ranked []*domain.PreparedOrder, slots int) ([]*domain.PreparedOrder, []OrderOutcome) {
	var skipped []OrderOutcome
	if len(ranked) > slots {
		for _, p := range ranked[slots:] {
			if p.IsAddOn {
				o.logger.Info("Skipping add-on beyond slots", zap.String("symbol", p.Symbol), zap.Int("slots", slots))
			}
			skipped = append(skipped, outcomeOf(p, StatusSkipped, "beyond slots"))
		}
		ranked = ranked[:slots]
	}

	weights := Weights(len(ranked), o.cfg.MaxWeight, o.cfg.MinWeight)
	selected := make([]*domain.PreparedOrder, 0, len(ranked))
	for i, p := range ranked {
		weighted := *p
		weighted.Quantity = indicator.Truncate(p.Quantity*weights[i], p.QuantityPrecision)
		if weighted.Quantity > 0 {
			weighted.Quantity = ClampQuantity(weighted.Quantity, p.ClosePrice, p.Lot)
		}
		if weighted.Quantity <= 0 {
			skipped = append(skipped, outcomeOf(p, StatusSkipped, "zero quantity"))
			continue
		}
		selected = append(selected, &weighted)
	}
	return selected, skipped
}

// Execute submits every order. Symbols run concurrently, the steps of one
// symbol run in order, and a failure never stops the other symbols.
func (o *OrderOrchestrator) Execute(ctx context.Context, orders []*domain.PreparedOrder) []OrderOutcome {
	outcomes := make([]OrderOutcome, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}
	for i, p := range orders {
		g.Go(func() error {
			outcomes[i] = o.place(gctx, p)
			metrics.Orders.WithLabelValues(string(p.Direction.Side()), outcomes[i].Status).Inc()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *OrderOrchestrator) place(ctx context.Context, p *domain.PreparedOrder) OrderOutcome {
	side := p.Direction.Side()
	log := o.logger.With(zap.String("symbol", p.Symbol), zap.String("side", string(side)))

	if o.cfg.DryRun {
		log.Info("Dry run order",
			zap.Float64("qty", p.Quantity),
			zap.Int("leverage", p.Leverage),
			zap.Float64("stop", p.StopPrice),
			zap.Bool("add_on", p.IsAddOn))
		return outcomeOf(p, StatusDryRun, "")
	}

	if !p.Isolated {
		if err := o.exchange.SetIsolatedMargin(ctx, p.Symbol); err != nil {
			log.Warn("Set isolated margin failed", zap.Error(err))
		}
	}
	if err := o.exchange.SetLeverage(ctx, p.Symbol, p.Leverage); err != nil {
		log.Warn("Set leverage failed", zap.Int("leverage", p.Leverage), zap.Error(err))
	}

	var entry *domain.OrderResult
	err := o.withAgreement(ctx, p.Symbol, func() error {
		var err error
		entry, err = o.exchange.SubmitMarketOrder(ctx, domain.MarketOrderRequest{
			Symbol:            p.Symbol,
			PositionSide:      side,
			Quantity:          p.Quantity,
			QuantityPrecision: p.QuantityPrecision,
			Leverage:          p.Leverage,
		})
		return err
	})
	if err != nil {
		log.Error("Market entry failed", zap.Float64("qty", p.Quantity), zap.Error(err))
		return outcomeOf(p, StatusEntryFailed, err.Error())
	}
	log.Info("Market entry placed", zap.Int64("order_id", entry.OrderID), zap.Float64("qty", p.Quantity))

	reference := entry.AvgPrice
	if reference <= 0 {
		reference = p.ClosePrice
	}
	stop, err := o.PlaceStop(ctx, p.Symbol, p.Direction, p.StopPrice, reference, 0, p.PricePrecision)

	out := outcomeOf(p, StatusSubmitted, "")
	out.OrderID = entry.OrderID
	o.journal(ctx, p, entry, stop)
	if err != nil {
		log.Error("Stop order failed", zap.Float64("stop", p.StopPrice), zap.Error(err))
		out.Status = StatusStopFailed
		out.Error = err.Error()
		return out
	}
	out.StopOrderID = stop.OrderID
	out.StopPrice = stop.StopPrice
	return out
}

// PlaceStop submits a close-position stop. A stop the exchange says would
// trigger immediately is nudged once away from reference and retried, unless
// the nudge would leave it no tighter than bound (0 means no bound).
func (o *OrderOrchestrator) PlaceStop(ctx context.Context, symbol string, dir domain.Direction, stopPrice, reference, bound float64, pricePrecision int) (*domain.OrderResult, error) {
	req := domain.StopOrderRequest{
		Symbol:         symbol,
		PositionSide:   dir.Side(),
		StopPrice:      stopPrice,
		PricePrecision: pricePrecision,
	}
	submit := func() (*domain.OrderResult, error) {
		var res *domain.OrderResult
		err := o.withAgreement(ctx, symbol, func() error {
			var err error
			res, err = o.exchange.SubmitStopOrder(ctx, req)
			return err
		})
		return res, err
	}

	res, err := submit()
	if errors.Is(err, domain.ErrWouldTrigger) && reference > 0 {
		nudged := NudgeStop(dir, stopPrice, reference, o.cfg.StopBuffer, pricePrecision)
		if bound > 0 && !tighter(dir, nudged, bound) {
			return nil, err
		}
		o.logger.Warn("Stop would trigger, nudging",
			zap.String("symbol", symbol),
			zap.Float64("stop", stopPrice),
			zap.Float64("nudged", nudged))
		req.StopPrice = nudged
		res, err = submit()
	}
	if err != nil {
		return nil, err
	}
	if res.StopPrice == 0 {
		res.StopPrice = req.StopPrice
	}
	return res, nil
}

// withAgreement runs fn and, when the exchange asks for a trading agreement,
// acknowledges it once and runs fn one more time.
func (o *OrderOrchestrator) withAgreement(ctx context.Context, symbol string, fn func() error) error {
	err := fn()
	if !errors.Is(err, domain.ErrAgreementRequired) {
		return err
	}
	o.logger.Warn("Trading agreement required, acknowledging", zap.String("symbol", symbol))
	if ackErr := o.exchange.AcknowledgeAgreement(ctx, symbol); ackErr != nil {
		return fmt.Errorf("acknowledge agreement: %v: %w", ackErr, err)
	}
	return fn()
}

func (o *OrderOrchestrator) journal(ctx context.Context, p *domain.PreparedOrder, entry, stop *domain.OrderResult) {
	if o.trades == nil {
		return
	}
	rec := &domain.TradeRecord{
		Symbol:    p.Symbol,
		Side:      p.Direction.Side(),
		Quantity:  p.Quantity,
		Price:     entry.AvgPrice,
		Leverage:  p.Leverage,
		StopPrice: p.StopPrice,
		IsAddOn:   p.IsAddOn,
		OrderID:   entry.OrderID,
		CreatedAt: time.Now(),
	}
	if stop != nil {
		rec.StopPrice = stop.StopPrice
	}
	if err := o.trades.SaveTrade(ctx, rec); err != nil {
		o.logger.Error("Failed to journal trade", zap.String("symbol", p.Symbol), zap.Error(err))
	}
}

func outcomeOf(p *domain.PreparedOrder, status, reason string) OrderOutcome {
	return OrderOutcome{
		Symbol:    p.Symbol,
		Direction: p.Direction,
		Quantity:  p.Quantity,
		Leverage:  p.Leverage,
		StopPrice: p.StopPrice,
		IsAddOn:   p.IsAddOn,
		Status:    status,
		Error:     reason,
	}
}
