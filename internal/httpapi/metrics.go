package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the HTTP surface.
type Metrics struct {
	inner *metrics
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the HTTP collectors on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{inner: &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tmolockd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Lock requests handled, by operation and result.",
		}, []string{"operation", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tmolockd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Lock request latency, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}}
}
