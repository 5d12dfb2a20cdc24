package operators_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/specialistvlad/burstflow/internal/executor"
	"github.com/specialistvlad/burstflow/internal/localexecutor"
	"github.com/specialistvlad/burstflow/internal/meta"
	"github.com/specialistvlad/burstflow/internal/operators"
	"github.com/specialistvlad/burstflow/internal/plan"
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

func rng(name string, to int64) *plan.Operator {
	return plan.Op("range", name).SetValue("to", cty.NumberIntVal(to)).SetValue("batch_size", cty.NumberIntVal(7))
}

func TestRangeFilterSink_PreservesOrder(t *testing.T) {
	// Arrange
	ops := []*plan.Operator{
		rng("numbers", 100),
		plan.Op("filter", "even", "range.numbers").Set("predicate", plan.MustParseExpr("row % 2 == 0")),
		plan.Op("sink", "out", "filter.even"),
	}

	// Act
	res, err := run(t, nil, ops...)

	// Assert
	require.NoError(t, err)
	var want []int64
	for i := int64(0); i < 100; i += 2 {
		want = append(want, i)
	}
	assert.Equal(t, want, res.Ints(t, "out"))
}

func TestValues_Partitioned(t *testing.T) {
	rows := cty.TupleVal([]cty.Value{
		cty.StringVal("a"), cty.StringVal("b"), cty.StringVal("c"), cty.StringVal("d"), cty.StringVal("e"),
	})
	res, err := run(t, nil,
		plan.Op("values", "letters").SetValue("rows", rows).SetValue("batch_size", cty.NumberIntVal(2)).Parallel(2),
		plan.Op("sink", "out", "values.letters"),
	)

	require.NoError(t, err)
	var got []string
	for _, row := range res.Rows("out") {
		got = append(got, row.AsString())
	}
	sort.Strings(got)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestProject(t *testing.T) {
	res, err := run(t, nil,
		rng("numbers", 5),
		plan.Op("project", "square", "range.numbers").Set("expr", plan.MustParseExpr("row * row")),
		plan.Op("sink", "out", "project.square"),
	)

	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 4, 9, 16}, res.Ints(t, "out"))
}

func TestLimit_ClosesInputEarly(t *testing.T) {
	testCases := []struct {
		name string
		n    int64
		want []int64
	}{
		{name: "inside first batch", n: 3, want: testutil.Seq(0, 3)},
		{name: "across batches", n: 10, want: testutil.Seq(0, 10)},
		{name: "zero", n: 0, want: nil},
		{name: "more than input", n: 1000, want: testutil.Seq(0, 50)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := run(t, nil,
				rng("numbers", 50),
				plan.Op("limit", "first", "range.numbers").SetValue("n", cty.NumberIntVal(tc.n)),
				plan.Op("sink", "out", "limit.first"),
			)

			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Ints(t, "out"))
		})
	}
}

func TestLimit_StopsUnboundedProducer(t *testing.T) {
	res, err := run(t, nil,
		rng("numbers", 1<<40),
		plan.Op("limit", "first", "range.numbers").SetValue("n", cty.NumberIntVal(5)),
		plan.Op("sink", "out", "limit.first"),
	)

	require.NoError(t, err)
	assert.Equal(t, testutil.Seq(0, 5), res.Ints(t, "out"))
}

func TestFanoutMerge_UnionWithoutDuplicates(t *testing.T) {
	// Arrange
	ops := []*plan.Operator{
		rng("numbers", 1000),
		plan.Op("filter", "low", "range.numbers").Set("predicate", plan.MustParseExpr("row < 500")),
		plan.Op("filter", "high", "range.numbers").Set("predicate", plan.MustParseExpr("row >= 500")),
		plan.Op("merge", "all", "filter.low", "filter.high"),
		plan.Op("sink", "out", "merge.all"),
	}

	// Act
	res, err := run(t, nil, ops...)

	// Assert
	require.NoError(t, err)
	got := res.Ints(t, "out")
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, testutil.Seq(0, 1000), got)
}

func TestAggregate(t *testing.T) {
	testCases := []struct {
		function string
		expr     string
		want     cty.Value
	}{
		{function: "count", want: cty.NumberIntVal(10)},
		{function: "sum", want: cty.NumberIntVal(45)},
		{function: "sum", expr: "row * 2", want: cty.NumberIntVal(90)},
		{function: "min", want: cty.NumberIntVal(0)},
		{function: "max", want: cty.NumberIntVal(9)},
	}

	for _, tc := range testCases {
		t.Run(tc.function+tc.expr, func(t *testing.T) {
			agg := plan.Op("aggregate", "agg", "range.numbers").SetValue("function", cty.StringVal(tc.function))
			if tc.expr != "" {
				agg.Set("expr", plan.MustParseExpr(tc.expr))
			}

			res, err := run(t, nil, rng("numbers", 10), agg, plan.Op("sink", "out", "aggregate.agg"))

			require.NoError(t, err)
			rows := res.Rows("out")
			require.Len(t, rows, 1)
			assert.True(t, rows[0].Equals(tc.want).True(), "got %s", rows[0].GoString())
		})
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	res, err := run(t, nil,
		rng("numbers", 0),
		plan.Op("aggregate", "agg", "range.numbers").SetValue("function", cty.StringVal("max")),
		plan.Op("sink", "out", "aggregate.agg"),
	)

	require.NoError(t, err)
	rows := res.Rows("out")
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsNull())
}

func TestSort(t *testing.T) {
	res, err := run(t, nil,
		rng("numbers", 20),
		plan.Op("project", "mod", "range.numbers").Set("expr", plan.MustParseExpr("(row * 7) % 20")),
		plan.Op("sort", "ordered", "project.mod").SetValue("descending", cty.True),
		plan.Op("sink", "out", "sort.ordered"),
	)

	require.NoError(t, err)
	want := testutil.Seq(0, 20)
	sort.Slice(want, func(i, j int) bool { return want[i] > want[j] })
	assert.Equal(t, want, res.Ints(t, "out"))
}

func TestFailAfter_ReportsProcessorError(t *testing.T) {
	// Arrange
	ops := []*plan.Operator{
		rng("numbers", 100),
		plan.Op("fail_after", "boom", "range.numbers").SetValue("rows", cty.NumberIntVal(20)),
		plan.Op("sink", "out", "fail_after.boom"),
	}

	// Act
	res, err := run(t, nil, ops...)

	// Assert
	require.ErrorIs(t, err, operators.ErrInjected)
	var perr *executor.ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fail_after.boom[0]", perr.Processor)
	assert.LessOrEqual(t, len(res.Rows("out")), 20, "no rows past the failure point")
}

func TestFilter_NonBoolPredicate(t *testing.T) {
	_, err := run(t, nil,
		rng("numbers", 3),
		plan.Op("filter", "bad", "range.numbers").Set("predicate", plan.MustParseExpr("row + 1")),
		plan.Op("sink", "out", "filter.bad"),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must evaluate to a bool")
}

func TestDelay_UsesClock(t *testing.T) {
	// Arrange
	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTimer("delay")
	defer trap.Close()
	g, res := build(t, &registry.Env{Clock: clock},
		rng("numbers", 3),
		plan.Op("delay", "wait", "range.numbers").SetValue("duration", cty.StringVal("1h")),
		plan.Op("sink", "out", "delay.wait"),
	)

	done := make(chan error, 1)
	go func() {
		done <- localexecutor.New(localexecutor.Options{Workers: 2}).Run(context.Background(), g)
	}()

	// Act
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	call := trap.MustWait(ctx)
	call.MustRelease(ctx)
	clock.Advance(time.Hour).MustWait(ctx)

	// Assert
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("delayed pipeline did not finish")
	}
	assert.Equal(t, testutil.Seq(0, 3), res.Ints(t, "out"))
}

func TestDelay_ManyBlocksBehindFilter(t *testing.T) {
	const rows = 40
	testCases := []struct {
		name string
		exec *localexecutor.Executor
	}{
		{name: "threads", exec: localexecutor.New(localexecutor.Options{Workers: 4})},
		{name: "two threads", exec: localexecutor.New(localexecutor.Options{Workers: 2})},
		{name: "inline", exec: localexecutor.NewInline(localexecutor.Options{})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for round := 0; round < 5; round++ {
				// Arrange
				g, res := build(t, nil,
					plan.Op("range", "numbers").
						SetValue("to", cty.NumberIntVal(rows)).
						SetValue("batch_size", cty.NumberIntVal(1)),
					plan.Op("filter", "all", "range.numbers").Set("predicate", plan.MustParseExpr("true")),
					plan.Op("delay", "wait", "filter.all").SetValue("duration", cty.StringVal("1ms")),
					plan.Op("sink", "out", "delay.wait"),
				)

				// Act
				err := tc.exec.Run(context.Background(), g)

				// Assert
				require.NotErrorIs(t, err, executor.ErrStalled)
				require.NoError(t, err, "round %d", round)
				assert.Equal(t, testutil.Seq(0, rows), res.Ints(t, "out"))
			}
		})
	}
}

type quotaReader struct {
	quota meta.TenantQuota
	err   error
}

func (q quotaReader) GetTenantQuota(context.Context, string) (meta.TenantQuota, error) {
	return q.quota, q.err
}

func TestTenantQuota(t *testing.T) {
	env := &registry.Env{Tenant: "acme", Meta: quotaReader{quota: meta.TenantQuota{MaxDatabases: 3}}}

	res, err := run(t, env,
		plan.Op("tenant_quota", "q"),
		plan.Op("sink", "out", "tenant_quota.q"),
	)

	require.NoError(t, err)
	rows := res.Rows("out")
	require.Len(t, rows, 1)
	assert.Equal(t, "acme", rows[0].GetAttr("tenant").AsString())
	assert.True(t, rows[0].GetAttr("max_databases").Equals(cty.NumberIntVal(3)).True())
	assert.True(t, rows[0].GetAttr("max_stages").Equals(cty.Zero).True())
}

func TestTenantQuota_ReadError(t *testing.T) {
	boom := errors.New("storage offline")
	env := &registry.Env{Tenant: "acme", Meta: quotaReader{err: boom}}

	_, err := run(t, env,
		plan.Op("tenant_quota", "q"),
		plan.Op("sink", "out", "tenant_quota.q"),
	)

	require.ErrorIs(t, err, boom)
}
