// Command scan runs one scan-and-order pass in dry-run mode and prints the
// ranked, sized candidates as JSON. No order endpoint is ever called.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shiki2014/binan/internal/config"
	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/infrastructure/exchange"
	"github.com/shiki2014/binan/internal/infrastructure/logger"
	"github.com/shiki2014/binan/internal/infrastructure/storage"
	"github.com/shiki2014/binan/internal/usecase"
	"go.uber.org/zap"
)

// paperAccount answers GetAccount with a fixed balance so the scan can run
// without credentials.
type paperAccount struct {
	domain.Exchange
	equity float64
}

func (p *paperAccount) GetAccount(ctx context.Context) (*domain.Account, error) {
	return &domain.Account{TotalMarginBalance: p.equity, AvailableBalance: p.equity}, nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	equity := flag.Float64("equity", 0, "assume this balance instead of reading the account; state is then kept in memory")
	flag.Parse()

	os.Setenv("DRY_RUN", "true")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// a paper balance must not move the persisted peak equity
	dbPath := cfg.Storage.Path
	if *equity > 0 {
		dbPath = ":memory:"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	binance, err := exchange.NewBinanceAdapter(cfg.Binance(), exchange.NewRequestScheduler(cfg.Exchange.RequestSpacing, cfg.Exchange.Retry, log), log)
	if err != nil {
		log.Fatal("Failed to init exchange", zap.Error(err))
	}
	var ex domain.Exchange = binance
	if *equity > 0 {
		ex = &paperAccount{Exchange: binance, equity: *equity}
	}

	ctx := context.Background()
	catalog := usecase.NewSymbolCatalog()
	refresher := usecase.NewStateRefresher(ex, store, catalog, log, cfg.Refresher())
	if err := refresher.LoadState(ctx, cfg.Lists.Black, cfg.Lists.White); err != nil {
		log.Fatal("Failed to load state", zap.Error(err))
	}

	trader := usecase.NewTrader(
		ex,
		refresher,
		usecase.NewUniverseScanner(ex, store, catalog, usecase.NewSnapshotBuilder(cfg.Snapshot()), log, cfg.Scanner()),
		usecase.NewSignalEngine(cfg.Strategy.Lookback),
		usecase.NewPositionSizer(cfg.Sizer()),
		usecase.NewEquityTracker(store, log),
		usecase.NewOrderOrchestrator(ex, nil, log, cfg.Orchestrator()),
		cfg.Strategy.SlotDivisor,
		log,
	)

	report, err := trader.ScanAndOrder(ctx)
	if err != nil {
		log.Fatal("Scan failed", zap.Error(err))
	}

	out := struct {
		Report     *usecase.ScanReport     `json:"report"`
		Candidates []usecase.CandidateView `json:"candidates"`
	}{report, trader.LastCandidates()}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal("Failed to encode report", zap.Error(err))
	}
}
