package localexecutor_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/burstflow/internal/executor"
	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/localexecutor"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/specialistvlad/burstflow/internal/operators"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/specialistvlad/burstflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func compile(t *testing.T, ops ...*plan.Operator) (*graph.Graph, *testutil.Collector) {
	t.Helper()
	return testutil.Build(t, registry.NewWithModules(operators.Module{}), nil, ops...)
}

func fanOutPlan() []*plan.Operator {
	return []*plan.Operator{
		plan.Op("range", "numbers").SetValue("to", cty.NumberIntVal(2000)).SetValue("batch_size", cty.NumberIntVal(7)).Parallel(4),
		plan.Op("filter", "odd", "range.numbers").Set("predicate", plan.MustParseExpr("row % 2 == 1")).Parallel(4),
		plan.Op("sink", "out", "filter.odd"),
	}
}

func TestExecutor_StrategiesAgree(t *testing.T) {
	testCases := []struct {
		name string
		exec *localexecutor.Executor
	}{
		{name: "inline", exec: localexecutor.NewInline(localexecutor.Options{})},
		{name: "one worker", exec: localexecutor.New(localexecutor.Options{Workers: 1})},
		{name: "eight workers", exec: localexecutor.New(localexecutor.Options{Workers: 8})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			g, res := compile(t, fanOutPlan()...)

			// Act
			err := tc.exec.Run(context.Background(), g)

			// Assert
			require.NoError(t, err)
			got := res.SortedInts(t, "out")
			require.Len(t, got, 1000)
			for i, v := range got {
				require.Equal(t, int64(2*i+1), v)
			}
			for _, n := range g.Nodes() {
				assert.Equal(t, processor.Finished, n.State(), n.Address().String())
			}
		})
	}
}

func TestExecutor_Stress(t *testing.T) {
	for round := 0; round < 20; round++ {
		g, res := compile(t, fanOutPlan()...)
		require.NoError(t, localexecutor.New(localexecutor.Options{Workers: 6}).Run(context.Background(), g))
		require.Len(t, res.Ints(t, "out"), 1000)
		assert.Zero(t, g.BufferedItems())
	}
}

func TestExecutor_FailureLeavesEveryProcessorTerminal(t *testing.T) {
	// Arrange
	g, _ := compile(t,
		plan.Op("range", "numbers").SetValue("to", cty.NumberIntVal(100000)),
		plan.Op("fail_after", "boom", "range.numbers").SetValue("rows", cty.NumberIntVal(100)),
		plan.Op("sink", "out", "fail_after.boom"),
	)

	// Act
	err := localexecutor.New(localexecutor.Options{Workers: 3}).Run(context.Background(), g)

	// Assert
	var perr *executor.ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fail_after.boom[0]", perr.Processor)
	for _, n := range g.Nodes() {
		assert.True(t, n.State().IsTerminal(), "%s is %s", n.Address(), n.State())
	}
}

// idle never makes progress on its own.
type idle struct {
	processor.Ports
}

func (*idle) PollState() processor.State { return processor.NeedsInput }
func (*idle) Step(context.Context) error { return nil }

func TestExecutor_Stall(t *testing.T) {
	// Arrange
	b := graph.NewBuilder()
	src, err := b.AddProcessor(nodeid.New("idle", "src", 0), &idle{Ports: processor.NewPorts(0, 1)})
	require.NoError(t, err)
	dst, err := b.AddProcessor(nodeid.New("idle", "dst", 0), &idle{Ports: processor.NewPorts(1, 0)})
	require.NoError(t, err)
	require.NoError(t, b.Connect(src, 0, dst, 0))
	g, err := b.Build()
	require.NoError(t, err)

	// Act
	err = localexecutor.New(localexecutor.Options{Workers: 2}).Run(context.Background(), g)

	// Assert
	require.ErrorIs(t, err, executor.ErrStalled)
}

func TestExecutor_CancelledContext(t *testing.T) {
	g, _ := compile(t,
		plan.Op("range", "numbers").SetValue("to", cty.NumberIntVal(10_000_000)),
		plan.Op("sink", "out", "range.numbers"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := localexecutor.New(localexecutor.Options{Workers: 2}).Run(ctx, g)

	require.ErrorIs(t, err, executor.ErrCancelled)
	assert.Equal(t, graph.Cancelled, g.Outcome())
}

// portsGone loses its output ports once it reported Finished, so the graph
// panics while finishing it, outside any processor callback.
type portsGone struct {
	processor.Ports
	polled atomic.Bool
}

func (p *portsGone) PollState() processor.State {
	p.polled.Store(true)
	return processor.Finished
}

func (*portsGone) Step(context.Context) error { return nil }

func (p *portsGone) Outputs() []*processor.OutputPort {
	if p.polled.Load() {
		panic("output ports released")
	}
	return p.Ports.Outputs()
}

func TestExecutor_WorkerPanicIsReturned(t *testing.T) {
	testCases := []struct {
		name string
		exec *localexecutor.Executor
	}{
		{name: "threads", exec: localexecutor.New(localexecutor.Options{Workers: 2})},
		{name: "inline", exec: localexecutor.NewInline(localexecutor.Options{})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			b := graph.NewBuilder()
			src, err := b.AddProcessor(nodeid.New("broken", "src", 0), &portsGone{Ports: processor.NewPorts(0, 1)})
			require.NoError(t, err)
			dst, err := b.AddProcessor(nodeid.New("idle", "dst", 0), &idle{Ports: processor.NewPorts(1, 0)})
			require.NoError(t, err)
			require.NoError(t, b.Connect(src, 0, dst, 0))
			g, err := b.Build()
			require.NoError(t, err)

			// Act
			err = tc.exec.Run(context.Background(), g)

			// Assert
			require.Error(t, err)
			assert.Contains(t, err.Error(), "panicked: output ports released")
			assert.NotErrorIs(t, err, executor.ErrStalled)
			assert.Equal(t, graph.Cancelled, g.Outcome())
			for _, n := range g.Nodes() {
				assert.True(t, n.State().IsTerminal(), "%s is %s", n.Address(), n.State())
			}
		})
	}
}
