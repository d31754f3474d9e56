package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds all HTTP-related metrics.
type HTTPMetrics struct {
	requestsTotal  *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec
	responseSize   *prometheus.HistogramVec
	activeRequests prometheus.Gauge
}

// NewHTTPMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "endpoint", "status"}
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archharness_http_requests_total",
				Help: "Total HTTP requests labeled by method, endpoint and status code",
			},
			labels,
		),
		requestDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archharness_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			labels,
		),
		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archharness_http_response_size_bytes",
				Help:    "HTTP response body size in bytes",
				Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
			},
			labels,
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "archharness_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requestsTotal, m.requestDur, m.responseSize, m.activeRequests)
	}
	return m
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.activeRequests.Inc()
			defer m.activeRequests.Dec()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			endpoint := normalizePath(c.Path())
			method := c.Request().Method

			m.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
			m.requestDur.WithLabelValues(method, endpoint, status).Observe(time.Since(start).Seconds())
			m.responseSize.WithLabelValues(method, endpoint, status).Observe(float64(c.Response().Size))
			return nil
		}
	}
}

// normalizePath keeps metric labels bounded. Echo reports the route
// pattern (/api/v1/runs/:id), so only unmatched requests need folding.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
