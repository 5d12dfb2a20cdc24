// Package metrics holds the Prometheus collectors of the execution engine.
// All methods are safe to call on a nil *Metrics, which disables
// collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "burstflow"

// Metrics groups the engine's collectors.
type Metrics struct {
	tasksDriven   prometheus.Counter
	tasksDropped  prometheus.Counter
	steps         prometheus.Counter
	steals        prometheus.Counter
	parks         prometheus.Counter
	asyncStarted  prometheus.Counter
	asyncInFlight prometheus.Gauge
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	metaRequests  *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tasksDriven: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_driven_total",
			Help:      "Tasks claimed and driven by workers.",
		}),
		tasksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Tasks dropped because they were stale or the execution stopped.",
		}),
		steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_steps_total",
			Help:      "Processor steps executed.",
		}),
		steals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_steals_total",
			Help:      "Tasks a worker took from a sibling's local queue.",
		}),
		parks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_parks_total",
			Help:      "Times a worker parked waiting for tasks.",
		}),
		asyncStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_operations_total",
			Help:      "Asynchronous operations handed to the async bridge.",
		}),
		asyncInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "async_operations_in_flight",
			Help:      "Asynchronous operations currently running.",
		}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Executions by outcome.",
		}, []string{"outcome"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Wall time of executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		metaRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meta_requests_total",
			Help:      "Metadata requests by operation and result.",
		}, []string{"op", "result"}),
	}
}

// TaskDriven counts a task that was claimed and driven.
func (m *Metrics) TaskDriven() {
	if m != nil {
		m.tasksDriven.Inc()
	}
}

// TaskDropped counts a task that was popped but not driven.
func (m *Metrics) TaskDropped() {
	if m != nil {
		m.tasksDropped.Inc()
	}
}

// AsyncStarted counts an operation handed to the async bridge.
func (m *Metrics) AsyncStarted() {
	if m != nil {
		m.asyncStarted.Inc()
		m.asyncInFlight.Inc()
	}
}

// AsyncFinished marks an operation as no longer in flight.
func (m *Metrics) AsyncFinished() {
	if m != nil {
		m.asyncInFlight.Dec()
	}
}

// ObserveRun records the totals of one finished execution.
func (m *Metrics) ObserveRun(steps, steals, parks int64) {
	if m == nil {
		return
	}
	m.steps.Add(float64(steps))
	m.steals.Add(float64(steals))
	m.parks.Add(float64(parks))
}

// ObserveQuery records the outcome and duration of a query.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// ObserveMeta records a metadata request.
func (m *Metrics) ObserveMeta(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.metaRequests.WithLabelValues(op, result).Inc()
}
