package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// ScanReport summarizes one scan-and-order run.
type ScanReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Universe   int            `json:"universe"`
	Snapshots  int            `json:"snapshots"`
	Candidates int            `json:"candidates"`
	Slots      int            `json:"slots"`
	Submitted  int            `json:"submitted"`
	Skipped    int            `json:"skipped"`
	Equity     EquityState    `json:"equity"`
	Outcomes   []OrderOutcome `json:"outcomes"`
}

// CandidateView is the JSON shape of one ranked candidate.
type CandidateView struct {
	Rank             int                   `json:"rank"`
	Symbol           string                `json:"symbol"`
	Signal           domain.Signal         `json:"signal"`
	Whitelisted      bool                  `json:"whitelisted"`
	TrendOscillation int                   `json:"trend_oscillation"`
	TradeCount       int64                 `json:"trade_count"`
	Volatility       float64               `json:"volatility"`
	ClosePrice       float64               `json:"close_price"`
	ATR              float64               `json:"atr"`
	Order            *domain.PreparedOrder `json:"order,omitempty"`
}

// Trader wires the scan pipeline: refresh symbols, scan, evaluate, rank,
// size, then hand the ranked orders to the orchestrator.
type Trader struct {
	exchange     domain.Exchange
	refresher    *StateRefresher
	scanner      *UniverseScanner
	engine       *SignalEngine
	sizer        *PositionSizer
	equity       *EquityTracker
	orchestrator *OrderOrchestrator
	slotDivisor  int
	logger       *zap.Logger

	mu         sync.RWMutex
	last       *ScanReport
	candidates []CandidateView
}

func NewTrader(
	exchange domain.Exchange,
	refresher *StateRefresher,
	scanner *UniverseScanner,
	engine *SignalEngine,
	sizer *PositionSizer,
	equity *EquityTracker,
	orchestrator *OrderOrchestrator,
	slotDivisor int,
	logger *zap.Logger,
) *Trader {
	return &Trader{
		exchange:     exchange,
		refresher:    refresher,
		scanner:      scanner,
		engine:       engine,
		sizer:        sizer,
		equity:       equity,
		orchestrator: orchestrator,
		slotDivisor:  slotDivisor,
		logger:       logger,
	}
}

// ScanAndOrder runs the whole entry pipeline once.
func (t *Trader) ScanAndOrder(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{StartedAt: time.Now()}
	defer func() {
		metrics.ScanDuration.Observe(time.Since(report.StartedAt).Seconds())
	}()

	if err := t.refresher.RefreshSymbols(ctx); err != nil {
		t.logger.Warn("Symbol refresh failed, using cached catalog", zap.Error(err))
	}

	account, err := t.exchange.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	eq, err := t.equity.Update(ctx, account)
	if err != nil {
		return nil, err
	}
	report.Equity = eq

	scan, err := t.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	report.Universe = scan.Universe
	report.Snapshots = len(scan.Snapshots)
	metrics.UniverseSize.Set(float64(scan.Universe))

	var candidates []domain.Candidate
	for _, snap := range scan.Snapshots {
		if c, ok := t.engine.Evaluate(snap, account); ok {
			candidates = append(candidates, c)
		}
	}
	Rank(candidates)
	report.Candidates = len(candidates)

	views := make([]CandidateView, 0, len(candidates))
	var prepared []*domain.PreparedOrder
	for i, c := range candidates {
		order, ok := t.sizer.Size(c, eq.AtRisk, account.MarginIsolated(c.Snapshot.Symbol))
		views = append(views, CandidateView{
			Rank:             i + 1,
			Symbol:           c.Snapshot.Symbol,
			Signal:           c.Signal,
			Whitelisted:      c.Snapshot.Whitelisted,
			TrendOscillation: c.Snapshot.TrendOscillation,
			TradeCount:       c.Snapshot.TradeCount,
			Volatility:       c.Snapshot.Volatility,
			ClosePrice:       c.Snapshot.ClosePrice,
			ATR:              c.Snapshot.ATR,
			Order:            order,
		})
		if !ok {
			t.logger.Info("Candidate sized to nothing, skipping", zap.String("symbol", c.Snapshot.Symbol))
			report.Skipped++
			continue
		}
		prepared = append(prepared, order)
	}

	report.Slots = Slots(scan.Universe, eq.Drawdown, t.slotDivisor)
	selected, skipped := t.orchestrator.Plan(prepared, report.Slots)
	outcomes := t.orchestrator.Execute(ctx, selected)

	report.Skipped += len(skipped)
	for _, o := range outcomes {
		if o.Status == StatusSubmitted || o.Status == StatusStopFailed {
			report.Submitted++
		}
	}
	report.Outcomes = append(outcomes, skipped...)
	report.FinishedAt = time.Now()

	t.logger.Info("Scan finished",
		zap.Int("universe", report.Universe),
		zap.Int("candidates", report.Candidates),
		zap.Int("slots", report.Slots),
		zap.Int("submitted", report.Submitted),
		zap.Int("skipped", report.Skipped),
		zap.Float64("equity_at_risk", eq.AtRisk),
		zap.Float64("drawdown", eq.Drawdown))

	t.mu.Lock()
	t.last = report
	t.candidates = views
	t.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent scan summary, or nil before the first run.
func (t *Trader) LastReport() *ScanReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// LastCandidates returns the ranked candidates of the most recent scan.
func (t *Trader) LastCandidates() []CandidateView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CandidateView, len(t.candidates))
	copy(out, t.candidates)
	return out
}
