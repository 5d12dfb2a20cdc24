// Package print provides the `print` sink, which writes every row it
// receives as one JSON line.
package print

import (
	"context"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
)

// Kind is the operator kind registered by this module.
const Kind = "print"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// outputMu serializes writes from parallel print instances so lines never
// interleave.
var outputMu sync.Mutex

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the print kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Writes every row as a JSON line.",
		Inputs:      registry.One,
		Outputs:     registry.None,
		Params:      []string{"prefix"},
		New:         newPrint,
	})
}

type printer struct {
	processor.Ports
	name   string
	prefix string
	out    io.Writer
}

func newPrint(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	prefix, err := spec.String("prefix", "")
	if err != nil {
		return nil, err
	}
	p := &printer{Ports: processor.NewPorts(1, 0), name: spec.Address.String(), prefix: prefix, out: io.Discard}
	if spec.Env != nil && spec.Env.Output != nil {
		p.out = spec.Env.Output
	}
	return p, nil
}

func (p *printer) PollState() processor.State {
	switch {
	case p.In[0].HasData():
		return processor.Runnable
	case p.In[0].IsFinished():
		return processor.Finished
	default:
		return processor.NeedsInput
	}
}

func (p *printer) Step(ctx context.Context) error {
	b, ok := p.In[0].Pull()
	if !ok || b.IsEmpty() {
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Printing batch.", "processor", p.name, "rows", b.Len())
	return p.write(b)
}

func (p *printer) write(b data.Block) error {
	outputMu.Lock()
	defer outputMu.Unlock()
	for _, row := range b.Rows {
		v, err := data.ToGo(row)
		if err != nil {
			return fmt.Errorf("converting row: %w", err)
		}
		line, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding row: %w", err)
		}
		if _, err := fmt.Fprintf(p.out, "%s%s\n", p.prefix, line); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	return nil
}
