// Package metrics provides internal metrics collection for the coordination
// core. This package is internal and should not be imported by external
// projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates prometheus metrics for consensus and task operations.
type Collector struct {
	// Consensus metrics
	consensusCreated  *prometheus.CounterVec
	votesRecorded     *prometheus.CounterVec
	consensusOutcomes *prometheus.CounterVec
	consensusOpen     prometheus.Gauge
	tallyDuration     prometheus.Histogram

	// Task metrics
	tasksCreated    *prometheus.CounterVec
	taskTransitions *prometheus.CounterVec
	assignments     prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a collector registering on the given registerer.
// A nil registerer uses the prometheus default.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.consensusCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_created_total",
			Help:      "Total number of consensus processes created",
		},
		[]string{"type"},
	)

	c.votesRecorded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_recorded_total",
			Help:      "Total number of votes recorded",
		},
		[]string{"option"},
	)

	c.consensusOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_outcomes_total",
			Help:      "Terminal consensus statuses reached",
		},
		[]string{"status"},
	)

	c.consensusOpen = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consensus_open",
			Help:      "Number of consensus processes currently open",
		},
	)

	c.tallyDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tally_duration_seconds",
			Help:      "Time spent tallying votes",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.tasksCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Total number of tasks created",
		},
		[]string{"priority"},
	)

	c.taskTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_transitions_total",
			Help:      "Task aggregate status transitions",
		},
		[]string{"status"},
	)

	c.assignments = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_assignments_total",
			Help:      "Total number of task assignments",
		},
	)

	return c
}

// ConsensusCreated records a new consensus process.
func (c *Collector) ConsensusCreated(consensusType string) {
	c.consensusCreated.WithLabelValues(consensusType).Inc()
	c.consensusOpen.Inc()
}

// VoteRecorded records one accepted vote.
func (c *Collector) VoteRecorded(option string) {
	c.votesRecorded.WithLabelValues(option).Inc()
}

// ConsensusSettled records a consensus leaving the open state.
func (c *Collector) ConsensusSettled(status string) {
	c.consensusOutcomes.WithLabelValues(status).Inc()
	c.consensusOpen.Dec()
}

// TallyObserved records the duration of one tally pass.
func (c *Collector) TallyObserved(d time.Duration) {
	c.tallyDuration.Observe(d.Seconds())
}

// TaskCreated records a new task.
func (c *Collector) TaskCreated(priority string) {
	c.tasksCreated.WithLabelValues(priority).Inc()
}

// TaskTransition records an aggregate task status change.
func (c *Collector) TaskTransition(status string) {
	c.taskTransitions.WithLabelValues(status).Inc()
}

// TaskAssigned records one task assignment.
func (c *Collector) TaskAssigned() {
	c.assignments.Inc()
}
