// Package metrics exposes Prometheus counters for the authentication core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters the engine increments. A nil *Metrics is a
// valid no-op receiver so instrumentation stays optional.
type Metrics struct {
	logins           *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	sessionEvictions prometheus.Counter
}

// New registers the authcore collectors on reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_verifications_total",
			Help:      "Token verifications by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_refreshes_total",
			Help:      "Access-token refreshes by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by limit class.",
		}, []string{"class"}),
		sessionEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "session_evictions_total",
			Help:      "Sessions evicted by the per-user concurrency cap.",
		}),
	}

	reg.MustRegister(m.logins, m.verifications, m.refreshes, m.rateLimited, m.sessionEvictions)
	return m
}

// Login records a login attempt outcome ("success", "denied", "error").
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Verification records a token verification outcome.
func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

// Refresh records a refresh outcome.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// RateLimited records a rejection for a limit class.
func (m *Metrics) RateLimited(class string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(class).Inc()
}

// SessionEvicted records a cap eviction.
func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.sessionEvictions.Inc()
}
