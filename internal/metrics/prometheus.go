package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan cycle metrics
	ScanCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_scan_cycles_total",
			Help: "Total number of scan cycles",
		},
		[]string{"status"}, // status: success|skipped|error
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vega_scan_duration_seconds",
			Help:    "Scan cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Signal metrics
	SignalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_signals_generated_total",
			Help: "Total number of entry candidates produced",
		},
		[]string{"side"},
	)

	SignalsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vega_signals_rejected_total",
			Help: "Total number of candidates rejected by validation",
		},
	)

	SignalsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_signals_accepted_total",
			Help: "Total number of candidates admitted as positions",
		},
		[]string{"side"},
	)

	// Position metrics
	PositionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vega_positions_open_count",
			Help: "Current number of open positions",
		},
	)

	PositionExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_position_exits_total",
			Help: "Total number of closed positions",
		},
		[]string{"reason"},
	)

	// Market data metrics
	FetchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vega_fetch_errors_total",
			Help: "Total number of failed market data fetches",
		},
	)

	SnapshotCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vega_snapshot_count",
			Help: "Open-interest snapshots currently retained",
		},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(ScanCycles)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(SignalsGenerated)
	prometheus.MustRegister(SignalsRejected)
	prometheus.MustRegister(SignalsAccepted)
	prometheus.MustRegister(PositionsOpen)
	prometheus.MustRegister(PositionExits)
	prometheus.MustRegister(FetchErrors)
	prometheus.MustRegister(SnapshotCount)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records one scan cycle outcome
func RecordScan(status string, duration time.Duration) {
	ScanCycles.WithLabelValues(status).Inc()
	ScanDuration.Observe(duration.Seconds())
}
