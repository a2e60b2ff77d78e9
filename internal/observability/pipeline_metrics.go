package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Model load results.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultPlaceholder = "placeholder"
)

// PipelineCollector exposes metrics for the data paths feeding the engine:
// model loads and change-feed inserts.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	ModelLoads        *prometheus.CounterVec
	ModelLoadDuration *prometheus.HistogramVec
	FeedInserts       *prometheus.CounterVec
	BreakerOpen       *prometheus.GaugeVec
}

// NewPipelineCollector registers pipeline metrics against the provided registerer.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	reg, gatherer := gathererFor(reg)

	loads, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starfleet_model_loads_total",
		Help: "Model load attempts, labeled by source (remote, local, placeholder) and result.",
	}, []string{"source", "result"}), "starfleet_model_loads_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starfleet_model_load_duration_seconds",
		Help:    "Time to fetch and decode a vehicle model.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source"}), "starfleet_model_load_duration_seconds")
	if err != nil {
		return nil, err
	}

	inserts, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starfleet_feed_inserts_total",
		Help: "Ship insert events received from change feeds, labeled by feed.",
	}, []string{"feed"}), "starfleet_feed_inserts_total")
	if err != nil {
		return nil, err
	}

	breaker, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "starfleet_model_breaker_open",
		Help: "1 while the circuit breaker guarding a model host is open.",
	}, []string{"host"}), "starfleet_model_breaker_open")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:          gatherer,
		ModelLoads:        loads,
		ModelLoadDuration: durations,
		FeedInserts:       inserts,
		BreakerOpen:       breaker,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PipelineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveModelLoad records one load attempt against a source.
func (c *PipelineCollector) ObserveModelLoad(source, result string, d time.Duration) {
	if c == nil {
		return
	}
	if c.ModelLoads != nil {
		c.ModelLoads.WithLabelValues(source, result).Inc()
	}
	if c.ModelLoadDuration != nil && d > 0 {
		c.ModelLoadDuration.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncFeedInserts counts one insert event from the named feed.
func (c *PipelineCollector) IncFeedInserts(feed string) {
	if c == nil || c.FeedInserts == nil {
		return
	}
	c.FeedInserts.WithLabelValues(feed).Inc()
}

// SetBreakerOpen reports the breaker state for a model host.
func (c *PipelineCollector) SetBreakerOpen(host string, open bool) {
	if c == nil || c.BreakerOpen == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	c.BreakerOpen.WithLabelValues(host).Set(v)
}
