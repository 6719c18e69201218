package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
	"github.com/shiki2014/binan/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Stop rules recorded with each replacement.
const (
	RuleATRTrail   = "atr_trail"
	RuleProfitLock = "profit_lock"
	RuleRangeLock  = "range_lock"
)

type MonitorConfig struct {
	Interval       string
	ATRPeriod      int
	ATRMultiplier  float64
	ProfitLockBase float64 // margins of loss accepted at two margins of profit
	ProfitLockStep float64 // extra margins accepted per further margin of profit
	RangeBars      int     // closed bars behind the range lock, 0 disables it
	DryRun         bool
}

// PriceRange is the high and low of the most recent closed bars.
type PriceRange struct {
	High float64
	Low  float64
}

// MonitorReport summarizes one monitor tick.
type MonitorReport struct {
	Time          time.Time `json:"time"`
	OpenPositions int       `json:"open_positions"`
	StopUpdates   int       `json:"stop_updates"`
	Reaped        int       `json:"reaped"`
}

// ProposeStop returns the tightest valid stop for pos, or false when no rule
// gives one. The trailing rule hangs the stop ATRMultiplier ATRs off the
// watermark. The profit lock rule kicks in once unrealized profit exceeds two
// margins and gives back a growing number of margins as profit grows. The
// range lock moves the stop to the recent low of a long (high of a short) once
// the whole range sits on the profitable side of entry.
func ProposeStop(pos *domain.Position, wm Watermark, atr float64, rng PriceRange, cfg MonitorConfig) (float64, string, bool) {
	dir := pos.PositionSide.Direction()
	mark := pos.MarkPrice
	best, rule, ok := 0.0, "", false
	consider := func(stop float64, r string) {
		if stop <= 0 || !stopValid(dir, stop, mark) {
			return
		}
		if !ok || tighter(dir, stop, best) {
			best, rule, ok = stop, r, true
		}
	}

	if atr > 0 {
		if dir == domain.DirectionLong && wm.High > 0 {
			consider(wm.High-cfg.ATRMultiplier*atr, RuleATRTrail)
		}
		if dir == domain.DirectionShort && wm.Low > 0 {
			consider(wm.Low+cfg.ATRMultiplier*atr, RuleATRTrail)
		}
	}

	wallet, upnl := pos.IsolatedWallet, pos.UnrealizedProfit
	if wallet > 0 && mark > 0 && upnl > wallet && upnl/2 > wallet {
		n := math.Floor(upnl / wallet)
		s := (n-2)*cfg.ProfitLockStep + cfg.ProfitLockBase
		offset := mark * s / n
		consider(mark-float64(dir)*offset, RuleProfitLock)
	}

	if entry := pos.EntryPrice; entry > 0 {
		if dir == domain.DirectionLong && rng.Low > entry {
			consider(rng.Low, RuleRangeLock)
		}
		if dir == domain.DirectionShort && rng.High > 0 && rng.High < entry {
			consider(rng.High, RuleRangeLock)
		}
	}
	return best, rule, ok
}

// tighter reports whether a is closer to price than b for a position in dir.
func tighter(dir domain.Direction, a, b float64) bool {
	if dir == domain.DirectionLong {
		return a > b
	}
	return a < b
}

// PositionMonitor runs the stop ratchet and the stale order reaper on a
// schedule, independently of the scan job.
type PositionMonitor struct {
	exchange     domain.Exchange
	store        domain.StateStore
	trades       domain.TradeRepository
	catalog      *SymbolCatalog
	cache        *WatermarkCache
	reaper       *StaleOrderReaper
	orchestrator *OrderOrchestrator
	logger       *zap.Logger
	cfg          MonitorConfig

	mu       sync.RWMutex
	lastLive map[PositionKey]bool
	last     MonitorReport
}

func NewPositionMonitor(
	exchange domain.Exchange,
	store domain.StateStore,
	trades domain.TradeRepository,
	catalog *SymbolCatalog,
	cache *WatermarkCache,
	reaper *StaleOrderReaper,
	orchestrator *OrderOrchestrator,
	logger *zap.Logger,
	cfg MonitorConfig,
) *PositionMonitor {
	return &PositionMonitor{
		exchange:     exchange,
		store:        store,
		trades:       trades,
		catalog:      catalog,
		cache:        cache,
		reaper:       reaper,
		orchestrator: orchestrator,
		logger:       logger,
		cfg:          cfg,
	}
}

// LastReport returns the summary of the most recent tick.
func (m *PositionMonitor) LastReport() MonitorReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Tick reads positions and open orders, cancels duplicates, ratchets every
// open position's stop and sweeps the orders of positions that went flat since
// the previous tick.
func (m *PositionMonitor) Tick(ctx context.Context) (MonitorReport, error) {
	account, err := m.exchange.GetAccount(ctx)
	if err != nil {
		return MonitorReport{}, fmt.Errorf("account: %w", err)
	}
	orders, err := m.exchange.GetOpenOrders(ctx)
	if err != nil {
		return MonitorReport{}, fmt.Errorf("open orders: %w", err)
	}
	seeds, err := LoadSeeds(ctx, m.store)
	if err != nil {
		return MonitorReport{}, err
	}

	open := account.OpenPositions()
	live := make(map[PositionKey]bool, len(open))
	for _, p := range open {
		live[PositionKey{p.Symbol, p.PositionSide}] = true
		m.cache.Track(p.Symbol, p.PositionSide, p.MarkPrice)
	}

	m.mu.RLock()
	flattened := make(map[PositionKey]bool)
	for k := range m.lastLive {
		if !live[k] {
			flattened[k] = true
		}
	}
	m.mu.RUnlock()

	cancelled := m.reaper.Reap(ctx, PlanReap(orders, account, flattened))
	remaining := orders[:0:0]
	for _, o := range orders {
		if !cancelled[o.OrderID] {
			remaining = append(remaining, o)
		}
	}

	report := MonitorReport{
		Time:          time.Now(),
		OpenPositions: len(open),
		Reaped:        len(cancelled),
	}
	inputs := make(map[string]stopInputs)
	for _, p := range open {
		in, ok := inputs[p.Symbol]
		if !ok {
			in = m.loadStopInputs(ctx, p.Symbol, seeds.ATR[p.Symbol])
			inputs[p.Symbol] = in
		}
		if m.ratchet(ctx, p, NewestOrder(remaining, p.Symbol, p.PositionSide), in) {
			report.StopUpdates++
		}
	}

	for k := range flattened {
		m.cache.Drop(k.Symbol, k.Side)
		m.logger.Info("Position flat, watermark dropped", zap.String("symbol", k.Symbol), zap.String("side", string(k.Side)))
	}

	m.mu.Lock()
	m.lastLive = live
	m.last = report
	m.mu.Unlock()
	return report, nil
}

// stopInputs are the market values the stop rules need for one symbol.
type stopInputs struct {
	atr float64
	rng PriceRange
}

// loadStopInputs fetches the latest klines once per symbol. The ATR advances
// the persisted seed by the latest closed bar, or falls back to a full
// computation when there is no seed.
func (m *PositionMonitor) loadStopInputs(ctx context.Context, symbol string, seed float64) stopInputs {
	limit := max(3, m.cfg.RangeBars+1)
	if seed <= 0 {
		limit = max(limit, m.cfg.ATRPeriod*3+1)
	}
	klines, err := m.exchange.GetKlines(ctx, symbol, m.cfg.Interval, limit)
	if err != nil {
		m.logger.Warn("Monitor klines failed", zap.String("symbol", symbol), zap.Error(err))
		return stopInputs{atr: seed}
	}
	if len(klines) < 3 {
		return stopInputs{atr: seed}
	}
	closed := klines[:len(klines)-1]
	in := stopInputs{rng: recentRange(closed, m.cfg.RangeBars)}
	if seed > 0 {
		last := len(closed) - 1
		in.atr = indicator.IncrementalATR(seed, indicator.TrueRange(closed[last], &closed[last-1]), m.cfg.ATRPeriod)
	} else {
		in.atr = indicator.WilderATR(closed, m.cfg.ATRPeriod)
	}
	return in
}

// recentRange is the high and low over the last n closed bars.
func recentRange(closed []domain.Kline, n int) PriceRange {
	if n <= 0 || len(closed) == 0 {
		return PriceRange{}
	}
	if len(closed) > n {
		closed = closed[len(closed)-n:]
	}
	r := PriceRange{High: closed[0].High, Low: closed[0].Low}
	for _, k := range closed[1:] {
		r.High = math.Max(r.High, k.High)
		r.Low = math.Min(r.Low, k.Low)
	}
	return r
}

// ratchet replaces the exchange stop when a rule proposes a tighter one. The
// comparison is always against the stop resting on the exchange, so a stop
// can only move toward price. The new stop goes in before the old one is
// cancelled.
func (m *PositionMonitor) ratchet(ctx context.Context, pos *domain.Position, current *domain.OpenOrder, in stopInputs) bool {
	log := m.logger.With(zap.String("symbol", pos.Symbol), zap.String("side", string(pos.PositionSide)))

	info, ok := m.catalog.Lookup(pos.Symbol)
	if !ok {
		log.Warn("Symbol not in catalog, skipping ratchet")
		return false
	}
	wm, _ := m.cache.Get(pos.Symbol, pos.PositionSide)
	candidate, rule, ok := ProposeStop(pos, wm, in.atr, in.rng, m.cfg)
	if !ok {
		return false
	}
	dir := pos.PositionSide.Direction()
	candidate = indicator.RoundTo(candidate, info.PricePrecision)
	if !stopValid(dir, candidate, pos.MarkPrice) {
		return false
	}

	oldStop := 0.0
	if current != nil {
		oldStop = current.StopPrice
		if !tighter(dir, candidate, oldStop) {
			return false
		}
	}

	if m.cfg.DryRun {
		log.Info("Dry run stop update", zap.Float64("old", oldStop), zap.Float64("new", candidate), zap.String("rule", rule))
		return false
	}

	res, err := m.orchestrator.PlaceStop(ctx, pos.Symbol, dir, candidate, pos.MarkPrice, oldStop, info.PricePrecision)
	if err != nil {
		log.Error("Stop update failed", zap.Float64("new", candidate), zap.Error(err))
		return false
	}
	if current != nil {
		if err := m.exchange.CancelOrder(ctx, pos.Symbol, current.OrderID); err != nil {
			// the reaper removes the older duplicate on the next tick
			log.Warn("Cancel of replaced stop failed", zap.Int64("order_id", current.OrderID), zap.Error(err))
		}
	}

	metrics.StopUpdates.WithLabelValues(rule).Inc()
	log.Info("Stop moved", zap.Float64("old", oldStop), zap.Float64("new", res.StopPrice), zap.String("rule", rule))
	if m.trades != nil {
		update := &domain.StopUpdate{
			Symbol:    pos.Symbol,
			Side:      pos.PositionSide,
			OldStop:   oldStop,
			NewStop:   res.StopPrice,
			Rule:      rule,
			CreatedAt: time.Now(),
		}
		if err := m.trades.SaveStopUpdate(ctx, update); err != nil {
			log.Error("Failed to journal stop update", zap.Error(err))
		}
	}
	return true
}
