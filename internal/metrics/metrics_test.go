package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TaskDriven()
		m.TaskDropped()
		m.AsyncStarted()
		m.AsyncFinished()
		m.ObserveRun(1, 2, 3)
		m.ObserveQuery("completed", time.Second)
		m.ObserveMeta("create_database", nil)
	})
}

func TestMetrics_Collect(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	m := New(reg)

	// Act
	m.TaskDriven()
	m.TaskDriven()
	m.ObserveRun(10, 1, 2)
	m.ObserveQuery("failed", time.Millisecond)
	m.ObserveMeta("create_database", errors.New("exists"))

	// Assert
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksDriven))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.steps))
	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP burstflow_queries_total Executions by outcome.
# TYPE burstflow_queries_total counter
burstflow_queries_total{outcome="failed"} 1
`), "burstflow_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metaRequests.WithLabelValues("create_database", "error")))
}
