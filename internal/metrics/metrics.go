package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "practice"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LimitChecksTotal   *prometheus.CounterVec
	FeatureChecksTotal *prometheus.CounterVec

	CacheRequestsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		LimitChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "limit_checks_total",
				Help:      "Subscription limit checks by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),
		FeatureChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feature_checks_total",
				Help:      "Plan feature checks by feature and outcome",
			},
			[]string{"feature", "outcome"},
		),
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.LimitChecksTotal,
			m.FeatureChecksTotal,
			m.CacheRequestsTotal,
		)
	}
	return m
}

// Limit check outcomes
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeBypass  = "bypass"
	OutcomeError   = "error"
)

func (m *Metrics) RecordLimitCheck(resource, outcome string) {
	if m == nil {
		return
	}
	m.LimitChecksTotal.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) RecordFeatureCheck(feature, outcome string) {
	if m == nil {
		return
	}
	m.FeatureChecksTotal.WithLabelValues(feature, outcome).Inc()
}

func (m *Metrics) RecordCache(name string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(name, result).Inc()
}
