package processor

import (
	"testing"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/edge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, id int) (*OutputPort, *InputPort, *Recorder, *Recorder) {
	t.Helper()
	e := edge.New(id)
	out, in := &OutputPort{}, &InputPort{}
	outRec, inRec := &Recorder{}, &Recorder{}
	out.Bind(e, outRec)
	in.Bind(e, inRec)
	return out, in, outRec, inRec
}

func TestPorts_RecordTouchedEdges(t *testing.T) {
	// Arrange
	out, in, outRec, inRec := connect(t, 7)

	// Act
	require.True(t, out.Push(data.Ints(1)))
	require.False(t, out.Push(data.Ints(2)), "second push must hit backpressure")
	b, ok := in.Pull()

	// Assert
	require.True(t, ok)
	assert.Equal(t, data.Ints(1), b)
	assert.Equal(t, []int{7}, outRec.Downstream(), "only the successful push is recorded")
	assert.Equal(t, []int{7}, inRec.Upstream())
	assert.Empty(t, outRec.Upstream())
}

func TestPorts_FinishAndClose(t *testing.T) {
	out, in, outRec, inRec := connect(t, 3)

	out.Finish()
	out.Finish()
	assert.Equal(t, []int{3}, outRec.Downstream(), "finish is recorded once")
	assert.True(t, in.IsFinished())

	in.Close()
	assert.Empty(t, inRec.Upstream(), "closing an exhausted edge is a no-op")

	outRec.Reset()
	assert.Empty(t, outRec.Downstream())
}

func TestPorts_ConsumerCloseStopsProducer(t *testing.T) {
	out, in, _, inRec := connect(t, 1)
	require.True(t, out.Push(data.Ints(1)))

	in.Close()

	assert.Equal(t, []int{1}, inRec.Upstream())
	assert.True(t, out.IsFinished())
	assert.False(t, out.CanPush())
	assert.True(t, in.IsFinished(), "queued data is dropped on close")
}

func TestPorts_Unbound(t *testing.T) {
	p := NewPorts(1, 1)

	assert.True(t, p.AllInputsFinished())
	assert.True(t, p.AllOutputsFinished())
	assert.False(t, p.Out[0].Push(data.Ints(1)))
	_, ok := p.In[0].Pull()
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "WaitingAsync", WaitingAsync.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, Cancelled.IsTerminal())
	assert.False(t, HasOutputReady.IsTerminal())
}
