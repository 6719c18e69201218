package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/indicator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Persisted state keys.
const (
	KeySymbols          = "symbols"
	KeyATR              = "atr"
	KeyTrendOscillation = "trend_oscillation"
	KeyVolatility       = "volatility"
	KeyBlackList        = "black_list"
	KeyWhiteList        = "white_list"
)

// periodsPerYear annualizes the volatility of 12h bars.
const periodsPerYear = 200

type RefresherConfig struct {
	Interval    string
	SeedLimit   int // klines fetched per symbol for the seeds
	ATRPeriod   int
	FastEMA     int
	SlowEMA     int
	Concurrency int
}

// Seeds are the per-symbol historical values recomputed every few hours.
type Seeds struct {
	ATR              map[string]float64 `json:"atr"`
	TrendOscillation map[string]int     `json:"trend_oscillation"`
	Volatility       map[string]float64 `json:"volatility"`
}

// For picks out the seeds of one symbol.
func (s Seeds) For(symbol string) SymbolSeeds {
	osc, ok := s.TrendOscillation[symbol]
	return SymbolSeeds{
		ATR:              s.ATR[symbol],
		TrendOscillation: osc,
		HasOscillation:   ok,
		Volatility:       s.Volatility[symbol],
	}
}

// StateRefresher keeps the symbol catalog and the persisted seeds current.
type StateRefresher struct {
	exchange domain.Exchange
	store    domain.StateStore
	catalog  *SymbolCatalog
	logger   *zap.Logger
	cfg      RefresherConfig
}

func NewStateRefresher(exchange domain.Exchange, store domain.StateStore, catalog *SymbolCatalog, logger *zap.Logger, cfg RefresherConfig) *StateRefresher {
	return &StateRefresher{
		exchange: exchange,
		store:    store,
		catalog:  catalog,
		logger:   logger,
		cfg:      cfg,
	}
}

// LoadState restores the catalog from the store and seeds the black and white
// lists when they are missing. Any read error here is fatal for the caller.
func (r *StateRefresher) LoadState(ctx context.Context, blackSeed, whiteSeed []string) error {
	var infos []domain.SymbolInfo
	if _, err := r.store.Load(ctx, KeySymbols, &infos); err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}
	r.catalog.Set(infos)

	for key, seed := range map[string][]string{KeyBlackList: blackSeed, KeyWhiteList: whiteSeed} {
		var list []string
		found, err := r.store.Load(ctx, key, &list)
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		if found {
			continue
		}
		if seed == nil {
			seed = []string{}
		}
		if err := r.store.Save(ctx, key, seed); err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
	}
	return nil
}

// RefreshSymbols reloads the tradable contract list from the exchange.
func (r *StateRefresher) RefreshSymbols(ctx context.Context) error {
	infos, err := r.exchange.GetExchangeInfo(ctx)
	if err != nil {
		return fmt.Errorf("exchange info: %w", err)
	}
	n := r.catalog.Set(infos)
	if err := r.store.Save(ctx, KeySymbols, r.catalog.All()); err != nil {
		return fmt.Errorf("save symbols: %w", err)
	}
	r.logger.Info("Symbols refreshed", zap.Int("tradable", n), zap.Int("listed", len(infos)))
	return nil
}

// RefreshSeeds recomputes ATR, trend oscillation and volatility for every
// catalog symbol over closed bars and persists them. Symbols that fail keep
// their previous values.
func (r *StateRefresher) RefreshSeeds(ctx context.Context) error {
	prev, err := LoadSeeds(ctx, r.store)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Concurrency > 0 {
		g.SetLimit(r.cfg.Concurrency)
	}
	for _, info := range r.catalog.All() {
		g.Go(func() error {
			klines, err := r.exchange.GetKlines(gctx, info.Symbol, r.cfg.Interval, r.cfg.SeedLimit)
			if err != nil {
				r.logger.Warn("Seed klines failed", zap.String("symbol", info.Symbol), zap.Error(err))
				return nil
			}
			if len(klines) < 2 {
				return nil
			}
			closed := klines[:len(klines)-1]
			closes := indicator.ClosePrices(closed)
			atr := indicator.WilderATR(closed, r.cfg.ATRPeriod)
			osc := indicator.TrendOscillation(closes, r.cfg.FastEMA, r.cfg.SlowEMA)
			vol := indicator.Volatility(closes, periodsPerYear)

			mu.Lock()
			defer mu.Unlock()
			if atr > 0 {
				prev.ATR[info.Symbol] = atr
			}
			prev.TrendOscillation[info.Symbol] = osc
			prev.Volatility[info.Symbol] = vol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := errors.Join(
		r.store.Save(ctx, KeyATR, prev.ATR),
		r.store.Save(ctx, KeyTrendOscillation, prev.TrendOscillation),
		r.store.Save(ctx, KeyVolatility, prev.Volatility),
	); err != nil {
		return fmt.Errorf("save seeds: %w", err)
	}
	r.logger.Info("Seeds refreshed", zap.Int("symbols", len(prev.ATR)))
	return nil
}

// LoadSeeds reads the persisted seeds, returning empty maps for missing keys.
func LoadSeeds(ctx context.Context, store domain.StateStore) (Seeds, error) {
	s := Seeds{
		ATR:              map[string]float64{},
		TrendOscillation: map[string]int{},
		Volatility:       map[string]float64{},
	}
	for key, dst := range map[string]any{
		KeyATR:              &s.ATR,
		KeyTrendOscillation: &s.TrendOscillation,
		KeyVolatility:       &s.Volatility,
	} {
		if _, err := store.Load(ctx, key, dst); err != nil {
			return Seeds{}, fmt.Errorf("load %s: %w", key, err)
		}
	}
	// a stored JSON null decodes to a nil map
	if s.ATR == nil {
		s.ATR = map[string]float64{}
	}
	if s.TrendOscillation == nil {
		s.TrendOscillation = map[string]int{}
	}
	if s.Volatility == nil {
		s.Volatility = map[string]float64{}
	}
	return s, nil
}

// LoadLists returns the black and white lists as sets.
func LoadLists(ctx context.Context, store domain.StateStore) (black, white map[string]bool, err error) {
	black, err = loadSet(ctx, store, KeyBlackList)
	if err != nil {
		return nil, nil, err
	}
	white, err = loadSet(ctx, store, KeyWhiteList)
	if err != nil {
		return nil, nil, err
	}
	return black, white, nil
}

func loadSet(ctx context.Context, store domain.StateStore, key string) (map[string]bool, error) {
	var list []string
	if _, err := store.Load(ctx, key, &list); err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return set, nil
}
