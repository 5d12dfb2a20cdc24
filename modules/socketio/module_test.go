package socketio

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/edge"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func specWith(args map[string]cty.Value) *registry.Spec {
	exprs := make(map[string]hcl.Expression, len(args))
	for k, v := range args {
		exprs[k] = plan.Literal(v)
	}
	return &registry.Spec{Address: nodeid.New(Kind, "feed", 0), Parallelism: 1, Outputs: 1, Args: exprs}
}

func TestDecodeConfig(t *testing.T) {
	// Arrange
	spec := specWith(map[string]cty.Value{
		"url":           cty.StringVal("http://localhost:3000/rt"),
		"request_event": cty.StringVal("subscribe"),
		"request":       cty.ObjectVal(map[string]cty.Value{"table": cty.StringVal("events")}),
		"timeout":       cty.StringVal("2s"),
	})

	// Act
	cfg, err := decodeConfig(spec)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "/", cfg.Namespace)
	assert.Equal(t, "batch", cfg.DataEvent)
	assert.Equal(t, "end", cfg.EndEvent)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, map[string]any{"table": "events"}, cfg.Request)
}

func TestDecodeConfig_Errors(t *testing.T) {
	testCases := []struct {
		name string
		args map[string]cty.Value
	}{
		{name: "empty url", args: map[string]cty.Value{"url": cty.StringVal(""), "request_event": cty.StringVal("go")}},
		{name: "bad timeout", args: map[string]cty.Value{"url": cty.StringVal("http://x"), "request_event": cty.StringVal("go"), "timeout": cty.StringVal("soon")}},
		{name: "url not a string", args: map[string]cty.Value{"url": cty.EmptyObjectVal, "request_event": cty.StringVal("go")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeConfig(specWith(tc.args))
			require.Error(t, err)
		})
	}
}

func TestPayloadRows(t *testing.T) {
	rows, err := payloadRows([]any{[]any{float64(1), float64(2)}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Equals(cty.NumberIntVal(2)).True())

	rows, err = payloadRows([]any{map[string]any{"id": "a"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = payloadRows(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRemote_States(t *testing.T) {
	// Arrange
	p, err := newRemote(context.Background(), specWith(map[string]cty.Value{
		"url":           cty.StringVal("http://localhost:3000"),
		"request_event": cty.StringVal("subscribe"),
	}))
	require.NoError(t, err)
	r := p.(*remote)
	r.Out[0].Bind(edge.New(0), nil)

	// Act & Assert
	assert.Equal(t, processor.WaitingAsync, r.PollState())

	b := data.Ints(1)
	r.pending = &b
	assert.Equal(t, processor.Runnable, r.PollState())
	require.NoError(t, r.Step(context.Background()))
	assert.Nil(t, r.pending)

	r.pending = &b
	assert.Equal(t, processor.HasOutputReady, r.PollState(), "edge is still full")

	r.pending = nil
	r.ended = true
	assert.Equal(t, processor.Finished, r.PollState())

	_, isAsync := p.(processor.AsyncProcessor)
	assert.True(t, isAsync)
}

func TestModule_Registers(t *testing.T) {
	r := registry.NewWithModules(&Module{})
	def, ok := r.Lookup(Kind)
	require.True(t, ok)
	assert.Equal(t, registry.None, def.Inputs)
	assert.Error(t, def.CheckArgs(map[string]hcl.Expression{}))
}
