package usecase

import (
	"context"
	"errors"

	"github.com/shiki2014/binan/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ScannerConfig struct {
	Interval    string
	Limit       int
	Concurrency int
}

// ScanResult is the outcome of one pass over the universe.
type ScanResult struct {
	Universe  int // symbols scanned after the black list
	Snapshots []*domain.SymbolSnapshot
	Dropped   int // short history or fetch failure
}

// UniverseScanner fetches klines for every tradable symbol and builds
// snapshots. All requests go through the exchange's shared scheduler, so the
// fan-out here only bounds how many wait in line at once.
type UniverseScanner struct {
	exchange domain.Exchange
	store    domain.StateStore
	catalog  *SymbolCatalog
	builder  *SnapshotBuilder
	logger   *zap.Logger
	cfg      ScannerConfig
}

func NewUniverseScanner(exchange domain.Exchange, store domain.StateStore, catalog *SymbolCatalog, builder *SnapshotBuilder, logger *zap.Logger, cfg ScannerConfig) *UniverseScanner {
	return &UniverseScanner{
		exchange: exchange,
		store:    store,
		catalog:  catalog,
		builder:  builder,
		logger:   logger,
		cfg:      cfg,
	}
}

// Scan returns snapshots in catalog order. A symbol that cannot be fetched or
// has too little history is dropped without failing the scan.
func (s *UniverseScanner) Scan(ctx context.Context) (*ScanResult, error) {
	black, white, err := LoadLists(ctx, s.store)
	if err != nil {
		return nil, err
	}
	seeds, err := LoadSeeds(ctx, s.store)
	if err != nil {
		return nil, err
	}

	var symbols []domain.SymbolInfo
	for _, info := range s.catalog.All() {
		if black[info.Symbol] {
			continue
		}
		symbols = append(symbols, info)
	}
	if len(symbols) == 0 {
		return nil, errors.New("empty universe")
	}

	snapshots := make([]*domain.SymbolSnapshot, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for i, info := range symbols {
		g.Go(func() error {
			klines, err := s.exchange.GetKlines(gctx, info.Symbol, s.cfg.Interval, s.cfg.Limit)
			if err != nil {
				s.logger.Warn("Klines failed", zap.String("symbol", info.Symbol), zap.Error(err))
				return nil
			}
			snap, err := s.builder.Build(info, klines, white[info.Symbol], seeds.For(info.Symbol))
			if err != nil {
				if !errors.Is(err, domain.ErrInsufficientData) {
					s.logger.Warn("Snapshot failed", zap.String("symbol", info.Symbol), zap.Error(err))
				}
				return nil
			}
			snapshots[i] = snap
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &ScanResult{Universe: len(symbols)}
	for _, snap := range snapshots {
		if snap == nil {
			res.Dropped++
			continue
		}
		res.Snapshots = append(res.Snapshots, snap)
	}
	return res, nil
}
