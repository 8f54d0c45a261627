// Package metrics wires the replay engine's runtime counters into a
// Prometheus registry. Every recording method is nil-receiver safe so
// callers can pass a nil *Registry when metrics are not wired and skip
// the usual "if metrics != nil" guard at every call site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the counters, gauges, and histograms the replay
// loader and delivery server emit.
type Registry struct {
	reg *prometheus.Registry

	messagesProcessed  prometheus.Counter
	processingErrors   prometheus.Counter
	bookUpdates        *prometheus.CounterVec
	bookDepth          *prometheus.GaugeVec
	applyDuration      prometheus.Histogram
	activeConnections  prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
}

// New creates and registers every metric against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		messagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbo_messages_processed_total",
			Help: "Total MBO messages applied to the market.",
		}),
		processingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbo_messages_processing_errors_total",
			Help: "Total fatal errors encountered while applying MBO messages.",
		}),
		bookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbo_order_book_updates_total",
			Help: "Total book mutations by effect kind.",
		}, []string{"effect"}),
		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mbo_order_book_depth",
			Help: "Current resting level count per instrument and side.",
		}, []string{"instrument", "side"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbo_order_book_apply_duration_seconds",
			Help:    "Time to apply a single MBO message to the market.",
			Buckets: prometheus.DefBuckets,
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mbo_active_connections",
			Help: "Number of currently open streaming connections.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbo_http_requests_total",
			Help: "Total HTTP requests served by the delivery server.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		r.messagesProcessed,
		r.processingErrors,
		r.bookUpdates,
		r.bookDepth,
		r.applyDuration,
		r.activeConnections,
		r.httpRequestsTotal,
	)
	return r
}

// Handler returns the HTTP handler that serves this registry's metrics
// in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) MessageProcessed() {
	if r == nil {
		return
	}
	r.messagesProcessed.Inc()
}

func (r *Registry) ProcessingError() {
	if r == nil {
		return
	}
	r.processingErrors.Inc()
}

func (r *Registry) BookUpdate(effect string) {
	if r == nil {
		return
	}
	r.bookUpdates.WithLabelValues(effect).Inc()
}

func (r *Registry) SetBookDepth(instrument, side string, depth float64) {
	if r == nil {
		return
	}
	r.bookDepth.WithLabelValues(instrument, side).Set(depth)
}

func (r *Registry) ObserveApplyDuration(seconds float64) {
	if r == nil {
		return
	}
	r.applyDuration.Observe(seconds)
}

func (r *Registry) ConnectionOpened() {
	if r == nil {
		return
	}
	r.activeConnections.Inc()
}

func (r *Registry) ConnectionClosed() {
	if r == nil {
		return
	}
	r.activeConnections.Dec()
}

func (r *Registry) HTTPRequest(route, status string) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(route, status).Inc()
}
