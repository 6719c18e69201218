package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/usecase"
	"go.uber.org/zap"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

type statusResponse struct {
	Status    string                 `json:"status"`
	DryRun    bool                   `json:"dry_run"`
	Uptime    string                 `json:"uptime"`
	LastScan  *usecase.ScanReport    `json:"last_scan"`
	LastTick  *usecase.MonitorReport `json:"last_tick"`
	Positions int                    `json:"tracked_positions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status: "ok",
		DryRun: s.dryRun,
		Uptime: time.Since(s.startedAt).Truncate(time.Second).String(),
	}
	if s.scan != nil {
		resp.LastScan = s.scan.LastReport()
	}
	if s.monitor != nil {
		if tick := s.monitor.LastReport(); !tick.Time.IsZero() {
			resp.LastTick = &tick
		}
	}
	if s.watermarks != nil {
		for _, legs := range s.watermarks.Snapshot() {
			resp.Positions += len(legs)
		}
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	candidates := []usecase.CandidateView{}
	if s.scan != nil {
		if last := s.scan.LastCandidates(); last != nil {
			candidates = last
		}
	}
	s.writeJSON(w, candidates)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	trades, err := s.tradeRepo.ListTrades(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleStopUpdates(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	updates, err := s.tradeRepo.ListStopUpdates(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list stop updates", zap.Error(err))
		http.Error(w, "Failed to list stop updates", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, updates)
}

func (s *Server) handleWatermarks(w http.ResponseWriter, r *http.Request) {
	marks := map[string]map[domain.Side]usecase.Watermark{}
	if s.watermarks != nil {
		marks = s.watermarks.Snapshot()
	}
	s.writeJSON(w, marks)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultJournalLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return 0, false
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}
	return limit, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
