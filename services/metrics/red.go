// Package metrics records RED (rate, errors, duration) metrics with prometheus.
package metrics

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shule"

// REDClient records calls of the operations of one service.
type REDClient struct {
	clock    clock.Clock
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewREDClient registers the collectors of subsystem on reg.
func NewREDClient(reg prometheus.Registerer, subsystem string, clk clock.Clock) *REDClient {
	if clk == nil {
		clk = clock.New()
	}
	labels := []string{"method"}
	c := &REDClient{
		clock: clk,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "call_total",
			Help:      "Number of calls",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "error_total",
			Help:      "Number of failed calls",
		}, append(labels, "code")),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of calls",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, labels),
	}
	reg.MustRegister(c.calls, c.errors, c.duration)
	return c
}

// Record starts timing method. The returned func records the outcome and passes err through.
func (c *REDClient) Record(method string) func(error) error {
	start := c.clock.Now()
	return func(err error) error {
		c.calls.WithLabelValues(method).Inc()
		if err != nil {
			c.errors.WithLabelValues(method, ErrorCode(err)).Inc()
		}
		c.duration.WithLabelValues(method).Observe(since(c.clock, start))
		return err
	}
}

func since(clk clock.Clock, start time.Time) float64 {
	return clk.Since(start).Seconds()
}
