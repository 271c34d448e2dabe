// Package metrics exposes quest run counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optiquest",
			Name:      "attempts_total",
			Help:      "Quest attempts by outcome and error kind",
		},
		[]string{"quest", "network", "outcome", "kind"},
	)
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optiquest",
			Name:      "retries_total",
			Help:      "Attempts repeated after a retryable failure",
		},
		[]string{"quest", "network"},
	)
	AttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "optiquest",
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of one wallet's attempt including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"quest", "network"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optiquest",
			Name:      "attempts_in_flight",
			Help:      "Wallet attempts currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(AttemptsTotal, RetriesTotal, AttemptDuration, InFlight)
}

// ObserveAttempt records one finished wallet attempt
func ObserveAttempt(quest, network, kind string, ok bool, retries int, took time.Duration) {
	outcome := "failure"
	if ok {
		outcome = "success"
		kind = ""
	}
	AttemptsTotal.WithLabelValues(quest, network, outcome, kind).Inc()
	if retries > 0 {
		RetriesTotal.WithLabelValues(quest, network).Add(float64(retries))
	}
	AttemptDuration.WithLabelValues(quest, network).Observe(took.Seconds())
}

// Serve exposes /metrics on addr in the background
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
