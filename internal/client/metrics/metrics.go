// Package metrics exposes session lifecycle counters to Prometheus. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sessionkeeper"

type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	LogoutsTotal    *prometheus.CounterVec
	IdleWarnings    prometheus.Counter
	SessionActive   prometheus.Gauge
	RequestsTotal   *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Refresh round-trips by outcome.",
			},
			[]string{"result"},
		),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_retries_total",
			Help:      "Calls resent once after an authorization failure.",
		}),
		LogoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logouts_total",
				Help:      "Ended sessions by reason.",
			},
			[]string{"reason"},
		),
		IdleWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_warnings_total",
			Help:      "Inactivity warnings raised.",
		}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "1 while a session is established.",
		}),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intercepted_requests_total",
				Help:      "Outbound calls seen by the interceptor.",
			},
			[]string{"class"},
		),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Latency of the refresh round-trip.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.RefreshTotal,
		m.RetriesTotal,
		m.LogoutsTotal,
		m.IdleWarnings,
		m.SessionActive,
		m.RequestsTotal,
		m.RefreshDuration,
	)
	return m
}

func (m *Metrics) ObserveRefresh(err error, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(seconds)
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) Logout(reason common.LogoutReason) {
	if m == nil {
		return
	}
	m.LogoutsTotal.WithLabelValues(string(reason)).Inc()
	m.SessionActive.Set(0)
}

func (m *Metrics) IdleWarning() {
	if m == nil {
		return
	}
	m.IdleWarnings.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionActive.Set(1)
}

// Request counts an outbound call; class is "internal", "external" or "skipped".
func (m *Metrics) Request(class string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(class).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
