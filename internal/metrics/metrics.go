// Package metrics exposes Prometheus instrumentation for the evaluation
// tick, command dispatch, ground routing, and advisor collaborators.
// Grounded on Asgard/Pricilla's internal/metrics/prometheus.go: a global
// singleton built once via sync.Once and promauto, namespaced per
// subsystem, with small helper functions wrapping each WithLabelValues
// call site.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every autoflight Prometheus instrument.
type Metrics struct {
	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	PhaseTransitions  *prometheus.CounterVec
	CurrentPhase      *prometheus.GaugeVec
	HeldAxesCount     prometheus.Gauge

	CommandsDispatched *prometheus.CounterVec
	CommandsThrottled  prometheus.Counter
	SafetyClampsTotal  *prometheus.CounterVec

	QueueDropsTotal prometheus.Counter
	QueueDepth      prometheus.Gauge

	RouteRequestsTotal *prometheus.CounterVec
	RoutePlanDuration  prometheus.Histogram

	ATCPhaseTransitions *prometheus.CounterVec

	AdvisorQueriesTotal   *prometheus.CounterVec
	AdvisorQueryDuration  prometheus.Histogram
	LearningCount         prometheus.Gauge
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Get returns the global autoflight metrics instance, creating it on
// first use.
func Get() *Metrics {
	globalOnce.Do(func() {
		global = newMetrics()
	})
	return global
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "evaluator",
		Name:      "ticks_total",
		Help:      "Total number of evaluation ticks processed.",
	})

	m.TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "autoflight",
		Subsystem: "evaluator",
		Name:      "tick_duration_seconds",
		Help:      "Wall time spent in one evaluation tick.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	})

	m.PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "evaluator",
		Name:      "phase_transitions_total",
		Help:      "Flight-phase transitions by from/to phase.",
	}, []string{"from", "to"})

	m.CurrentPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "autoflight",
		Subsystem: "evaluator",
		Name:      "current_phase",
		Help:      "1 for the currently active flight phase, 0 otherwise.",
	}, []string{"phase"})

	m.HeldAxesCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "autoflight",
		Subsystem: "dispatch",
		Name:      "held_axes_count",
		Help:      "Number of axes currently held by the 60Hz retransmission loop.",
	})

	m.CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "dispatch",
		Name:      "commands_dispatched_total",
		Help:      "Commands successfully transmitted to the simulator, by name.",
	}, []string{"command"})

	m.CommandsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "rules",
		Name:      "commands_throttled_total",
		Help:      "Rule-engine commands dropped for repeating an identical emission within the minimum interval.",
	})

	m.SafetyClampsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "rules",
		Name:      "safety_clamps_total",
		Help:      "Safety-overlay clamp activations, by axis.",
	}, []string{"axis"})

	m.QueueDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "queue",
		Name:      "drops_total",
		Help:      "Discrete commands dropped for exceeding the pending-queue bound.",
	})

	m.QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "autoflight",
		Subsystem: "queue",
		Name:      "pending_depth",
		Help:      "Discrete commands currently buffered awaiting the rate limiter.",
	})

	m.RouteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "router",
		Name:      "requests_total",
		Help:      "Ground-taxi route requests, by outcome.",
	}, []string{"outcome"})

	m.RoutePlanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "autoflight",
		Subsystem: "router",
		Name:      "plan_duration_seconds",
		Help:      "Time to compute an A* ground-taxi route.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	})

	m.ATCPhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "atc",
		Name:      "phase_transitions_total",
		Help:      "ATC controller phase transitions by from/to phase.",
	}, []string{"from", "to"})

	m.AdvisorQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoflight",
		Subsystem: "advisor",
		Name:      "queries_total",
		Help:      "Advisor queries by outcome.",
	}, []string{"outcome"})

	m.AdvisorQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "autoflight",
		Subsystem: "advisor",
		Name:      "query_duration_seconds",
		Help:      "Advisor query round-trip latency.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	m.LearningCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "autoflight",
		Subsystem: "learning",
		Name:      "entries",
		Help:      "Number of persisted learning entries.",
	})

	return m
}

// RecordTick observes one evaluation tick's duration.
func RecordTick(duration time.Duration) {
	m := Get()
	m.TicksTotal.Inc()
	m.TickDuration.Observe(duration.Seconds())
}

// RecordPhaseTransition records a flight-phase transition and updates the
// current-phase gauge set.
func RecordPhaseTransition(from, to string) {
	m := Get()
	if from != to {
		m.PhaseTransitions.WithLabelValues(from, to).Inc()
	}
	m.CurrentPhase.WithLabelValues(from).Set(0)
	m.CurrentPhase.WithLabelValues(to).Set(1)
}

// UpdateHeldAxesCount sets the held-axis gauge.
func UpdateHeldAxesCount(count int) {
	Get().HeldAxesCount.Set(float64(count))
}

// RecordCommandDispatched increments the per-command dispatch counter.
func RecordCommandDispatched(command string) {
	Get().CommandsDispatched.WithLabelValues(command).Inc()
}

// RecordCommandThrottled increments the repeated-emission throttle counter.
func RecordCommandThrottled() {
	Get().CommandsThrottled.Inc()
}

// RecordSafetyClamp increments the safety-clamp counter for axis.
func RecordSafetyClamp(axis string) {
	Get().SafetyClampsTotal.WithLabelValues(axis).Inc()
}

// RecordQueueDrop increments the pending-queue-bound drop counter.
func RecordQueueDrop() {
	Get().QueueDropsTotal.Inc()
}

// UpdateQueueDepth sets the pending discrete-command queue depth gauge.
func UpdateQueueDepth(depth int) {
	Get().QueueDepth.Set(float64(depth))
}

// RecordRouteRequest records a ground-taxi route computation.
func RecordRouteRequest(outcome string, duration time.Duration) {
	m := Get()
	m.RouteRequestsTotal.WithLabelValues(outcome).Inc()
	m.RoutePlanDuration.Observe(duration.Seconds())
}

// RecordATCPhaseTransition records an ATC controller phase transition.
func RecordATCPhaseTransition(from, to string) {
	if from == to {
		return
	}
	Get().ATCPhaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordAdvisorQuery records an advisor query outcome and latency.
func RecordAdvisorQuery(outcome string, duration time.Duration) {
	m := Get()
	m.AdvisorQueriesTotal.WithLabelValues(outcome).Inc()
	m.AdvisorQueryDuration.Observe(duration.Seconds())
}

// UpdateLearningCount sets the persisted-learning-entries gauge.
func UpdateLearningCount(count int) {
	Get().LearningCount.Set(float64(count))
}
