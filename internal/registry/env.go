package registry

import (
	"context"
	"io"

	"github.com/coder/quartz"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/meta"
)

// Collector receives the batches that reach a sink. Add must not block.
type Collector interface {
	Add(sink string, b data.Block)
}

// MetaReader is the part of the metadata service operators may read.
type MetaReader interface {
	GetTenantQuota(ctx context.Context, tenant string) (meta.TenantQuota, error)
}

// Env carries what factories need beyond their own arguments. It is shared
// by every processor of one execution.
type Env struct {
	Results Collector
	Meta    MetaReader
	Tenant  string
	// Output is where printing sinks write; nil discards.
	Output io.Writer
	// Clock drives timers of time-based operators; nil means the real clock.
	Clock quartz.Clock
}

// ClockOrReal returns e.Clock, falling back to the real clock.
func (e *Env) ClockOrReal() quartz.Clock {
	if e == nil || e.Clock == nil {
		return quartz.NewReal()
	}
	return e.Clock
}
