package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/usecase"
	"go.uber.org/zap"
)

// ScanStatus is the read side of the scan-and-order job.
type ScanStatus interface {
	LastReport() *usecase.ScanReport
	LastCandidates() []usecase.CandidateView
}

// MonitorStatus is the read side of the position monitor.
type MonitorStatus interface {
	LastReport() usecase.MonitorReport
}

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	tradeRepo  domain.TradeRepository
	scan       ScanStatus
	monitor    MonitorStatus
	watermarks *usecase.WatermarkCache
	dryRun     bool
	startedAt  time.Time
	logger     *zap.Logger
}

func NewServer(
	port int,
	tradeRepo domain.TradeRepository,
	scan ScanStatus,
	monitor MonitorStatus,
	watermarks *usecase.WatermarkCache,
	dryRun bool,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		tradeRepo:  tradeRepo,
		scan:       scan,
		monitor:    monitor,
		watermarks: watermarks,
		dryRun:     dryRun,
		startedAt:  time.Now(),
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Last ranked candidates
	s.router.HandleFunc("GET /api/candidates", s.handleCandidates)

	// Journal
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /api/stops", s.handleStopUpdates)

	// High/low watermarks of tracked positions
	s.router.HandleFunc("GET /api/watermarks", s.handleWatermarks)

	s.router.Handle("GET /metrics", promhttp.Handler())
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
