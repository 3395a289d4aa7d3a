package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry      *prometheus.Registry
	claimsTotal   *prometheus.CounterVec
	claimDuration prometheus.Histogram
	statusTotal   *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faucet_claims_total",
		Help: "Total number of claim requests by outcome",
	}, []string{"outcome"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "faucet_claim_duration_seconds",
		Help:    "End-to-end claim request duration",
		Buckets: prometheus.DefBuckets,
	})

	status := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faucet_status_checks_total",
		Help: "Total number of status checks by outcome",
	}, []string{"outcome"})

	r := prometheus.NewRegistry()
	r.MustRegister(claims, duration, status)

	return &metricsRegistry{
		registry:      r,
		claimsTotal:   claims,
		claimDuration: duration,
		statusTotal:   status,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incClaim(outcome string) {
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsRegistry) incStatus(outcome string) {
	m.statusTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsRegistry) observeClaim(seconds float64) {
	m.claimDuration.Observe(seconds)
}
