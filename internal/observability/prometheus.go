package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements chunkcanvas.MetricsCollector on a private
// Prometheus registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	opLatency  *prometheus.HistogramVec
	items      *prometheus.CounterVec
	searchK    prometheus.Histogram
	mirrors    *prometheus.CounterVec
	recoveries *prometheus.CounterVec
	httpReqs   *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector and registers its metrics
// together with the Go runtime and process collectors.
func NewPrometheusCollector() *PrometheusCollector {
	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chunkcanvas_operation_latency_seconds",
			Help:    "Latency of index operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkcanvas_items_total",
			Help: "Items written by successful upserts and deletes",
		}, []string{"op"}),
		searchK: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkcanvas_search_k",
			Help:    "Requested number of neighbors per search",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		mirrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkcanvas_mirror_uploads_total",
			Help: "Mirror uploads of committed index pairs",
		}, []string{"status"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkcanvas_recoveries_total",
			Help: "Pending metadata files resolved on open",
		}, []string{"action"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkcanvas_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}

	c.registry.MustRegister(
		c.opLatency,
		c.items,
		c.searchK,
		c.mirrors,
		c.recoveries,
		c.httpReqs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the metrics live in.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCreate implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordCreate(d time.Duration, err error) {
	c.opLatency.WithLabelValues("create", status(err)).Observe(d.Seconds())
}

// RecordUpsert implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordUpsert(count int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("upsert", status(err)).Observe(d.Seconds())
	if err == nil {
		c.items.WithLabelValues("upsert").Add(float64(count))
	}
}

// RecordDelete implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordDelete(count int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("delete", status(err)).Observe(d.Seconds())
	if err == nil {
		c.items.WithLabelValues("delete").Add(float64(count))
	}
}

// RecordRead implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordRead(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

// RecordSearch implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordSearch(k int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("search", status(err)).Observe(d.Seconds())
	c.searchK.Observe(float64(k))
}

// RecordMirror implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordMirror(_ time.Duration, err error) {
	c.mirrors.WithLabelValues(status(err)).Inc()
}

// RecordRecovery implements chunkcanvas.MetricsCollector.
func (c *PrometheusCollector) RecordRecovery(rolledForward bool) {
	action := "discard"
	if rolledForward {
		action = "roll-forward"
	}
	c.recoveries.WithLabelValues(action).Inc()
}

// RecordHTTP counts one served request.
func (c *PrometheusCollector) RecordHTTP(route string, code int) {
	c.httpReqs.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
