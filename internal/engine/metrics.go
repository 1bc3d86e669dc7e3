package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus instrumentation for the binding engine:
// attempt outcomes, failure kinds, bind latency, and cascade shape.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	failureReasons  *prometheus.CounterVec
	bindDuration    prometheus.Histogram
	sweepRounds     prometheus.Histogram
	unitsBound      prometheus.Counter
	registeredUnits prometheus.Gauge
}

// NewMetrics registers the engine metrics against the given registerer.
// Each engine should get its own registerer (or a uniquely-labelled one)
// to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "latch_bind_attempts_total",
				Help: "Total binding attempts by outcome.",
			},
			[]string{"outcome"},
		),
		failureReasons: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "latch_bind_failure_reasons_total",
				Help: "Total guard failures by condition kind.",
			},
			[]string{"kind"},
		),
		bindDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "latch_bind_duration_seconds",
				Help:    "Time spent evaluating one unit against one context.",
				Buckets: prometheus.DefBuckets,
			},
		),
		sweepRounds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "latch_sweep_rounds",
				Help:    "Cascade rounds consumed per sweep call.",
				Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
			},
		),
		unitsBound: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "latch_units_bound_total",
				Help: "Total successful bindings.",
			},
		),
		registeredUnits: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "latch_registered_units",
				Help: "Units currently registered.",
			},
		),
	}
}

func (m *Metrics) observeAttempt(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
		m.unitsBound.Inc()
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
	m.bindDuration.Observe(duration.Seconds())
}

func (m *Metrics) observeFailureKind(kind string) {
	if m == nil {
		return
	}
	m.failureReasons.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeSweep(rounds int) {
	if m == nil {
		return
	}
	m.sweepRounds.Observe(float64(rounds))
}

func (m *Metrics) setRegistered(n int) {
	if m == nil {
		return
	}
	m.registeredUnits.Set(float64(n))
}
