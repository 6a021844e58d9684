// Package metrics exposes Prometheus counters and histograms for the chat pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/MindHaven/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "mindhaven"

// Collector wraps Prometheus metrics for MindHaven. Each Collector owns its registry so
// tests and multiple instances never collide on the global one.
//
// All Record methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	MessagesClassified  *prometheus.CounterVec
	TopicsDetected      *prometheus.CounterVec
	ResponderRequests   *prometheus.CounterVec
	ResponderDuration   *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with its own Prometheus registry.
func NewCollector() *Collector {
	return NewCollectorWithNamespace(DefaultNamespace)
}

// NewCollectorWithNamespace creates a Collector whose metric names use ns as prefix.
func NewCollectorWithNamespace(ns string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		MessagesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "messages_classified_total",
			Help:      "Total number of inbound messages classified, by sentiment and intent",
		}, []string{"sentiment", "intent"}),
		TopicsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "topics_detected_total",
			Help:      "Total number of topic categories detected in inbound messages",
		}, []string{"category"}),
		ResponderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "responder_requests_total",
			Help:      "Total number of reply generations, by engine and outcome",
		}, []string{"engine", "outcome"}),
		ResponderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "responder_duration_seconds",
			Help:      "Duration of reply generation in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		c.MessagesClassified,
		c.TopicsDetected,
		c.ResponderRequests,
		c.ResponderDuration,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	return c
}

// Handler returns an HTTP handler that serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordClassification counts one classified message and each of its topics.
func (c *Collector) RecordClassification(result models.ClassificationResult) {
	if c == nil {
		return
	}
	c.MessagesClassified.WithLabelValues(string(result.Sentiment), string(result.Intent)).Inc()
	for _, topic := range result.Topics {
		c.TopicsDetected.WithLabelValues(string(topic)).Inc()
	}
}

// ObserveResponder records the outcome and latency of one reply generation.
func (c *Collector) ObserveResponder(engine, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ResponderRequests.WithLabelValues(engine, outcome).Inc()
	c.ResponderDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// RecordHTTPRequest records an HTTP request metric.
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
