// Package metrics exposes Prometheus instrumentation for HEAD exchanges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dlnaprobe"

// Exchange outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeBadStatus      = "bad_status"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	parseWarnings    *prometheus.CounterVec
	seekRejections   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		exchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "head_exchanges_total",
				Help:      "HEAD exchanges by outcome",
			},
			[]string{"outcome"},
		),
		exchangeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "head_exchange_duration_seconds",
				Help:      "Duration of HEAD round trips",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		parseWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_warnings_total",
				Help:      "Response header decode warnings by header",
			},
			[]string{"field"},
		),
		seekRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "seek_rejections_total",
				Help:      "Seek and rate requests rejected by the validator",
			},
			[]string{"reason"},
		),
	}
}

// ObserveExchange records one HEAD exchange.
func (m *Metrics) ObserveExchange(outcome string, d time.Duration) {
	m.exchanges.WithLabelValues(outcome).Inc()
	m.exchangeDuration.Observe(d.Seconds())
}

// ParseWarning records a header decode warning.
func (m *Metrics) ParseWarning(field string) {
	m.parseWarnings.WithLabelValues(field).Inc()
}

// SeekRejected records a validator rejection.
func (m *Metrics) SeekRejected(reason string) {
	m.seekRejections.WithLabelValues(reason).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
