package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics exposes Prometheus request instruments scraped at /metrics.
type HTTPMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP request metrics.
func NewHTTPMetrics() *HTTPMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "doorbell_http_requests_total",
		Help: "Counts HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "doorbell_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "doorbell_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	registry.MustRegister(requests, duration, inflight)

	return &HTTPMetrics{
		registry: registry,
		requests: requests,
		duration: duration,
		inflight: inflight,
	}
}

// Handler serves the Prometheus scrape endpoint.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records request counts and latency.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.inflight.Inc()
		c.Next()
		m.inflight.Dec()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requests.WithLabelValues(method, route, status).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
