package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shiki2014/binan/internal/domain"
	"github.com/shiki2014/binan/internal/usecase"
	"github.com/shiki2014/binan/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubScan struct {
	report     *usecase.ScanReport
	candidates []usecase.CandidateView
}

func (s *stubScan) LastReport() *usecase.ScanReport        { return s.report }
func (s *stubScan) LastCandidates() []usecase.CandidateView { return s.candidates }

type stubMonitor struct {
	report usecase.MonitorReport
}

func (s *stubMonitor) LastReport() usecase.MonitorReport { return s.report }

type stubJournal struct {
	trades    []*domain.TradeRecord
	updates   []*domain.StopUpdate
	err       error
	lastLimit int
}

func (j *stubJournal) SaveTrade(ctx context.Context, trade *domain.TradeRecord) error { return nil }
func (j *stubJournal) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	j.lastLimit = limit
	return j.trades, j.err
}
func (j *stubJournal) SaveStopUpdate(ctx context.Context, update *domain.StopUpdate) error {
	return nil
}
func (j *stubJournal) ListStopUpdates(ctx context.Context, limit int) ([]*domain.StopUpdate, error) {
	j.lastLimit = limit
	return j.updates, j.err
}

func newTestServer(scan web.ScanStatus, monitor web.MonitorStatus, journal *stubJournal, marks *usecase.WatermarkCache) http.Handler {
	return web.NewServer(0, journal, scan, monitor, marks, true, zap.NewNop()).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Status(t *testing.T) {
	scan := &stubScan{report: &usecase.ScanReport{Universe: 180, Candidates: 4, Submitted: 3, Skipped: 1}}
	monitor := &stubMonitor{report: usecase.MonitorReport{Time: time.Now(), OpenPositions: 2, StopUpdates: 1}}
	marks := usecase.NewWatermarkCache()
	marks.Track("BTCUSDT", domain.SideLong, 100)
	marks.Track("BTCUSDT", domain.SideShort, 100)

	rec := get(t, newTestServer(scan, monitor, &stubJournal{}, marks), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status   string              `json:"status"`
		DryRun   bool                `json:"dry_run"`
		LastScan *usecase.ScanReport `json:"last_scan"`
		LastTick *struct {
			OpenPositions int `json:"open_positions"`
		} `json:"last_tick"`
		Positions int `json:"tracked_positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.DryRun)
	require.NotNil(t, body.LastScan)
	assert.Equal(t, 180, body.LastScan.Universe)
	require.NotNil(t, body.LastTick)
	assert.Equal(t, 2, body.LastTick.OpenPositions)
	assert.Equal(t, 2, body.Positions, "each hedged leg counts")
}

func TestServer_StatusBeforeFirstRun(t *testing.T) {
	rec := get(t, newTestServer(&stubScan{}, &stubMonitor{}, &stubJournal{}, nil), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_scan":null`)
	assert.Contains(t, rec.Body.String(), `"last_tick":null`)
}

func TestServer_Candidates(t *testing.T) {
	scan := &stubScan{candidates: []usecase.CandidateView{
		{Rank: 1, Symbol: "BTCUSDT", Signal: domain.Signal{Direction: domain.DirectionLong, IsFirstBreak: true}},
	}}
	rec := get(t, newTestServer(scan, &stubMonitor{}, &stubJournal{}, nil), "/api/candidates")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []usecase.CandidateView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)

	empty := get(t, newTestServer(&stubScan{}, &stubMonitor{}, &stubJournal{}, nil), "/api/candidates")
	assert.Equal(t, "[]\n", empty.Body.String())
}

func TestServer_Journal(t *testing.T) {
	journal := &stubJournal{
		trades:  []*domain.TradeRecord{{ID: 1, Symbol: "ETHUSDT", Side: domain.SideShort}},
		updates: []*domain.StopUpdate{{ID: 2, Symbol: "ETHUSDT", Rule: "atr_trail"}},
	}
	h := newTestServer(&stubScan{}, &stubMonitor{}, journal, nil)

	rec := get(t, h, "/api/trades?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, journal.lastLimit)
	assert.Contains(t, rec.Body.String(), `"symbol":"ETHUSDT"`)

	rec = get(t, h, "/api/stops?limit=100000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, journal.lastLimit)
	assert.Contains(t, rec.Body.String(), `"rule":"atr_trail"`)

	get(t, h, "/api/trades")
	assert.Equal(t, 50, journal.lastLimit)

	rec = get(t, h, "/api/trades?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	journal.err = errors.New("disk I/O error")
	rec = get(t, h, "/api/trades")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Watermarks(t *testing.T) {
	marks := usecase.NewWatermarkCache()
	marks.Track("SOLUSDT", domain.SideLong, 150)
	marks.Observe("SOLUSDT", 160)

	rec := get(t, newTestServer(&stubScan{}, &stubMonitor{}, &stubJournal{}, marks), "/api/watermarks")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]map[domain.Side]usecase.Watermark
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, usecase.Watermark{High: 160, Low: 150}, got["SOLUSDT"][domain.SideLong])
}

func TestServer_Metrics(t *testing.T) {
	rec := get(t, newTestServer(&stubScan{}, &stubMonitor{}, &stubJournal{}, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_RejectsWrongMethod(t *testing.T) {
	h := newTestServer(&stubScan{}, &stubMonitor{}, &stubJournal{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
