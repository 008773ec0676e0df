package metrics

import (
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records the requests served by the API.
type HTTPMetrics struct {
	clock    clock.Clock
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer, clk clock.Clock) *HTTPMetrics {
	if clk == nil {
		clk = clock.New()
	}
	labels := []string{"method", "path", "status"}
	m := &HTTPMetrics{
		clock: clk,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Middleware records every request under its route path, eg. `/v1/schools/:id`.
// It must run after the error handler has written the response status.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := m.clock.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := prometheus.Labels{
				"method": ctx.Request().Method,
				"path":   path,
				"status": strconv.Itoa(ctx.Response().Status),
			}
			m.requests.With(labels).Inc()
			m.duration.With(labels).Observe(since(m.clock, start))
			return nil
		}
	}
}
