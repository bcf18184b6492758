// Package metrics holds the Prometheus collectors for the polling engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fetch cycle metrics
	Cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortiwatch_cycles_total",
			Help: "Total number of fetch cycles by result",
		},
		[]string{"result"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fortiwatch_cycle_duration_seconds",
			Help:    "Duration of fetch cycles including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fortiwatch_fetch_attempts_total",
			Help: "Total number of fetch attempts, retries included",
		},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortiwatch_fetch_errors_total",
			Help: "Total number of failed fetch attempts by error kind",
		},
		[]string{"kind"},
	)

	// Session metrics
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortiwatch_logins_total",
			Help: "Total number of authentication calls by result",
		},
		[]string{"result"},
	)

	// Window metrics
	BufferRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fortiwatch_buffer_records",
			Help: "Number of records currently held in the log window",
		},
	)

	RecordsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fortiwatch_records_normalized_total",
			Help: "Total number of raw records normalized",
		},
	)
)

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
