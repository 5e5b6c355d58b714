package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seqstream_sessions_total",
			Help: "Total number of sessions served, by outcome",
		},
		[]string{"outcome"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "seqstream_sessions_active",
			Help: "Number of sessions currently being served",
		},
	)
	itemsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seqstream_items_sent_total",
			Help: "Total number of sequence items written",
		},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seqstream_session_duration_seconds",
			Help:    "Duration of sessions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(sessionsTotal)
	prometheus.MustRegister(sessionsActive)
	prometheus.MustRegister(itemsSent)
	prometheus.MustRegister(sessionDuration)
}

// MetricsHandler serves the registered metrics in the prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
