package usecase

import (
	"context"
	"sort"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	ReapDuplicate = "duplicate"
	ReapOrphan    = "orphan"
)

// ReapAction is one order the reaper wants cancelled.
type ReapAction struct {
	Order  domain.OpenOrder
	Reason string
}

// PositionKey identifies one leg of a hedge-mode symbol.
type PositionKey struct {
	Symbol string
	Side   domain.Side
}

// PlanReap groups open orders by (symbol, position side). Where the position
// is live only the newest order survives. Where it is not, the whole group is
// cancelled, but only for legs listed in flattened; other orphan groups are
// left alone.
func PlanReap(orders []domain.OpenOrder, account *domain.Account, flattened map[PositionKey]bool) []ReapAction {
	groups := make(map[PositionKey][]domain.OpenOrder)
	var keys []PositionKey
	for _, o := range orders {
		k := PositionKey{o.Symbol, o.PositionSide}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
	}

	var actions []ReapAction
	for _, k := range keys {
		group := groups[k]
		if account != nil && account.FindPosition(k.Symbol, k.Side) != nil {
			sortNewestFirst(group)
			for _, o := range group[1:] {
				actions = append(actions, ReapAction{Order: o, Reason: ReapDuplicate})
			}
			continue
		}
		if flattened[k] {
			for _, o := range group {
				actions = append(actions, ReapAction{Order: o, Reason: ReapOrphan})
			}
		}
	}
	return actions
}

// NewestOrder returns the most recent order for (symbol, side), or nil.
func NewestOrder(orders []domain.OpenOrder, symbol string, side domain.Side) *domain.OpenOrder {
	var newest *domain.OpenOrder
	for i := range orders {
		o := &orders[i]
		if o.Symbol != symbol || o.PositionSide != side {
			continue
		}
		if newest == nil || newer(*o, *newest) {
			newest = o
		}
	}
	return newest
}

func sortNewestFirst(orders []domain.OpenOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		return newer(orders[i], orders[j])
	})
}

func newer(a, b domain.OpenOrder) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.After(b.Time)
	}
	return a.OrderID > b.OrderID
}

// StaleOrderReaper cancels what PlanReap selected.
type StaleOrderReaper struct {
	exchange domain.Exchange
	logger   *zap.Logger
	dryRun   bool
}

func NewStaleOrderReaper(exchange domain.Exchange, logger *zap.Logger, dryRun bool) *StaleOrderReaper {
	return &StaleOrderReaper{exchange: exchange, logger: logger, dryRun: dryRun}
}

// Reap cancels each action's order and returns the ids that are gone. A
// failed cancel is logged and left for the next tick.
func (r *StaleOrderReaper) Reap(ctx context.Context, actions []ReapAction) map[int64]bool {
	cancelled := make(map[int64]bool)
	for _, a := range actions {
		log := r.logger.With(
			zap.String("symbol", a.Order.Symbol),
			zap.String("side", string(a.Order.PositionSide)),
			zap.Int64("order_id", a.Order.OrderID),
			zap.String("reason", a.Reason))
		if r.dryRun {
			log.Info("Dry run cancel")
			continue
		}
		if err := r.exchange.CancelOrder(ctx, a.Order.Symbol, a.Order.OrderID); err != nil {
			log.Warn("Cancel failed", zap.Error(err))
			continue
		}
		cancelled[a.Order.OrderID] = true
		metrics.ReapedOrders.WithLabelValues(a.Reason).Inc()
		log.Info("Cancelled stale order")
	}
	return cancelled
}
