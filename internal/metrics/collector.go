// Package metrics exposes run counters and latencies to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector implements the observer hooks of llmclient, vision and workflow.
type Collector struct {
	registry *prometheus.Registry

	modelCalls        *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	rateLimited       *prometheus.CounterVec

	samples        *prometheus.CounterVec
	sampleDuration prometheus.Histogram

	steps   *prometheus.CounterVec
	signals *prometheus.CounterVec
	clients *prometheus.CounterVec

	governorPauses      prometheus.Counter
	governorPausedTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers every metric on a fresh registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.Named("metrics"),
	}

	c.modelCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model HTTP attempts by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	c.modelCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Model HTTP attempt latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"tier"},
	)

	c.rateLimited = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_rate_limited_total",
			Help:      "HTTP 429 responses by tier",
		},
		[]string{"tier"},
	)

	c.samples = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_samples_total",
			Help:      "Point samples by outcome",
		},
		[]string{"outcome"},
	)

	c.sampleDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vision_sample_duration_seconds",
			Help:      "End-to-end latency of one point sample, retries included",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	c.steps = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Executed steps by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	c.signals = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_signals_total",
			Help:      "Control-flow signals raised by steps",
		},
		[]string{"signal"},
	)

	c.clients = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_clients_total",
			Help:      "Client records started or skipped",
		},
		[]string{"outcome"},
	)

	c.governorPauses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "governor_pauses_total",
			Help:      "Cool-downs imposed by the rate-limit governor",
		},
	)

	c.governorPausedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "governor_paused_seconds_total",
			Help:      "Total cool-down time imposed by the rate-limit governor",
		},
	)

	return c
}

// Registry exposes the underlying registry for the HTTP handler and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveModelCall records one HTTP attempt.
func (c *Collector) ObserveModelCall(tier, outcome string, d time.Duration) {
	c.modelCalls.WithLabelValues(tier, outcome).Inc()
	c.modelCallDuration.WithLabelValues(tier).Observe(d.Seconds())
	if outcome == "rate_limited" {
		c.rateLimited.WithLabelValues(tier).Inc()
	}
}

// ObserveSample records one resolver sample.
func (c *Collector) ObserveSample(outcome string, d time.Duration) {
	c.samples.WithLabelValues(outcome).Inc()
	c.sampleDuration.Observe(d.Seconds())
}

// ObserveStep records one executed step.
func (c *Collector) ObserveStep(kind, outcome string) {
	c.steps.WithLabelValues(kind, outcome).Inc()
}

// ObserveSignal records a StopClient or Abort.
func (c *Collector) ObserveSignal(signal string) {
	c.signals.WithLabelValues(signal).Inc()
}

// ObserveClient records a client that was started or skipped.
func (c *Collector) ObserveClient(outcome string) {
	c.clients.WithLabelValues(outcome).Inc()
}

// ObserveGovernorPause is meant for vision.WithPauseHook.
func (c *Collector) ObserveGovernorPause(d time.Duration) {
	c.governorPauses.Inc()
	c.governorPausedTotal.Add(d.Seconds())
	c.logger.Debug("Governor pause recorded.", zap.Duration("pause", d))
}
