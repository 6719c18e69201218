// Package metrics holds the prometheus collectors the bot updates while it
// runs. They are registered in init() and served by the web server at
// /metrics.
//
//   - binan_orders_total{side,result}      entry orders by outcome
//   - binan_stop_updates_total{rule}       accepted stop replacements
//   - binan_reaped_orders_total{reason}    cancelled stale or orphan orders
//   - binan_requests_total{result}         scheduled exchange requests
//   - binan_scan_duration_seconds          scan-and-order wall time
//   - binan_universe_size                  tradable symbols in the last scan
//   - binan_equity_usd / binan_drawdown / binan_equity_at_risk_usd
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binan_orders_total",
			Help: "Entry orders by side and result",
		},
		[]string{"side", "result"},
	)

	StopUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binan_stop_updates_total",
			Help: "Stop-loss replacements by rule",
		},
		[]string{"rule"},
	)

	ReapedOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binan_reaped_orders_total",
			Help: "Cancelled resting orders by reason (duplicate|orphan)",
		},
		[]string{"reason"},
	)

	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binan_requests_total",
			Help: "Exchange requests passed through the scheduler",
		},
		[]string{"result"}, // ok|retry|error
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "binan_scan_duration_seconds",
			Help:    "Wall time of one scan-and-order run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	UniverseSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binan_universe_size",
			Help: "Tradable symbols seen by the last scan",
		},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binan_equity_usd",
			Help: "Total margin balance",
		},
	)

	Drawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binan_drawdown",
			Help: "Drawdown from the persisted equity peak (0..1)",
		},
	)

	EquityAtRisk = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "binan_equity_at_risk_usd",
			Help: "Equity used as the sizing base after the drawdown throttle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Orders,
		StopUpdates,
		ReapedOrders,
		Requests,
		ScanDuration,
		UniverseSize,
		Equity,
		Drawdown,
		EquityAtRisk,
	)
}
