package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiki2014/binan/internal/config"
	"github.com/shiki2014/binan/internal/infrastructure/exchange"
	"github.com/shiki2014/binan/internal/infrastructure/logger"
	"github.com/shiki2014/binan/internal/infrastructure/storage"
	"github.com/shiki2014/binan/internal/usecase"
	"github.com/shiki2014/binan/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	dryRun := flag.Bool("dry-run", false, "compute everything but never send orders")
	flag.Parse()

	// 1. Load Config
	if *dryRun {
		os.Setenv("DRY_RUN", "true")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tradeLog, err := logger.NewFileLogger(cfg.Logging.TradeLog, cfg.Logging.Level)
	if err != nil {
		log.Error("Failed to init trade logger, using default", zap.Error(err))
		tradeLog = log
	}
	defer tradeLog.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange
	scheduler := exchange.NewRequestScheduler(cfg.Exchange.RequestSpacing, cfg.Exchange.Retry, log)
	binance, err := exchange.NewBinanceAdapter(cfg.Binance(), scheduler, log)
	if err != nil {
		log.Fatal("Failed to init exchange", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Restore State
	catalog := usecase.NewSymbolCatalog()
	refresher := usecase.NewStateRefresher(binance, store, catalog, log, cfg.Refresher())
	if err := refresher.LoadState(ctx, cfg.Lists.Black, cfg.Lists.White); err != nil {
		log.Fatal("Failed to load state", zap.Error(err))
	}
	if catalog.Len() == 0 {
		if err := refresher.RefreshSymbols(ctx); err != nil {
			log.Error("Failed to fetch symbols", zap.Error(err))
		}
	}
	seeds, err := usecase.LoadSeeds(ctx, store)
	if err != nil {
		log.Fatal("Failed to load seeds", zap.Error(err))
	}
	if len(seeds.ATR) == 0 {
		go func() {
			if err := refresher.RefreshSeeds(ctx); err != nil {
				log.Error("Failed to compute initial seeds", zap.Error(err))
			}
		}()
	}

	// 6. Init Services
	orchestrator := usecase.NewOrderOrchestrator(binance, store, tradeLog, cfg.Orchestrator())
	trader := usecase.NewTrader(
		binance,
		refresher,
		usecase.NewUniverseScanner(binance, store, catalog, usecase.NewSnapshotBuilder(cfg.Snapshot()), log, cfg.Scanner()),
		usecase.NewSignalEngine(cfg.Strategy.Lookback),
		usecase.NewPositionSizer(cfg.Sizer()),
		usecase.NewEquityTracker(store, log),
		orchestrator,
		cfg.Strategy.SlotDivisor,
		log,
	)

	watermarks := usecase.NewWatermarkCache()
	monitor := usecase.NewPositionMonitor(
		binance,
		store,
		store,
		catalog,
		watermarks,
		usecase.NewStaleOrderReaper(binance, tradeLog, cfg.DryRun),
		orchestrator,
		tradeLog,
		cfg.Monitor(),
	)

	// 7. Mark Price Stream
	stream, err := exchange.NewMarkPriceStream(cfg.Exchange.WSEndpoint, cfg.Exchange.Proxy, cfg.Exchange.Retry, log)
	if err != nil {
		log.Fatal("Failed to init mark price stream", zap.Error(err))
	}
	stream.OnPriceUpdate(watermarks.Observe)
	go stream.Run(ctx)

	// 8. Jobs
	go runAligned(ctx, "refresh", cfg.Schedule.ScanInterval, cfg.Schedule.ScanOffset-cfg.Schedule.RefreshLead, log, func(ctx context.Context) {
		if err := refresher.RefreshSymbols(ctx); err != nil {
			log.Error("Failed to refresh symbols", zap.Error(err))
		}
		if err := refresher.RefreshSeeds(ctx); err != nil {
			log.Error("Failed to refresh seeds", zap.Error(err))
		}
	})

	go runAligned(ctx, "scan", cfg.Schedule.ScanInterval, cfg.Schedule.ScanOffset, log, func(ctx context.Context) {
		report, err := trader.ScanAndOrder(ctx)
		if err != nil {
			log.Error("Scan failed", zap.Error(err))
			return
		}
		log.Info("Scan finished",
			zap.Int("universe", report.Universe),
			zap.Int("candidates", report.Candidates),
			zap.Int("submitted", report.Submitted),
			zap.Int("skipped", report.Skipped),
			zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	})

	go runEvery(ctx, cfg.Schedule.MonitorInterval, func(ctx context.Context) {
		if _, err := monitor.Tick(ctx); err != nil {
			log.Error("Monitor tick failed", zap.Error(err))
		}
	})

	// 9. Init Web Server
	server := web.NewServer(cfg.Server.Port, store, trader, monitor, watermarks, cfg.DryRun, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	if cfg.DryRun {
		log.Warn("Dry run: orders are logged, never sent")
	}

	// 10. Wait for Shutdown
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
