package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/specialistvlad/burstflow/internal/processor"
)

// Module is the interface that all operator modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Arity bounds a port count. Max < 0 means unbounded.
type Arity struct {
	Min, Max int
}

// Accepts reports whether n ports satisfy the arity.
func (a Arity) Accepts(n int) bool {
	return n >= a.Min && (a.Max < 0 || n <= a.Max)
}

func (a Arity) String() string {
	switch {
	case a.Max < 0:
		return fmt.Sprintf("at least %d", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("exactly %d", a.Min)
	default:
		return fmt.Sprintf("%d to %d", a.Min, a.Max)
	}
}

var (
	// None is the arity of sources' inputs and sinks' outputs.
	None = Arity{0, 0}
	// One is the arity of a single port.
	One = Arity{1, 1}
	// Many is the arity of a variadic port list.
	Many = Arity{1, -1}
)

// Factory builds one processor instance.
type Factory func(ctx context.Context, spec *Spec) (processor.Processor, error)

// Definition describes an operator kind.
type Definition struct {
	Kind        string
	Description string
	Inputs      Arity
	Outputs     Arity
	// Params lists the argument names the kind accepts.
	Params []string
	// Required lists the arguments that must be present.
	Required []string
	New      Factory
}

// IsSink reports whether the kind has no outputs.
func (d *Definition) IsSink() bool {
	return d.Outputs == None
}

// Registry holds the operator definitions for a single application
// instance.
type Registry struct {
	defs map[string]*Definition
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// NewWithModules creates a Registry and registers every module in order.
func NewWithModules(modules ...Module) *Registry {
	r := New()
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds def. Registering a kind twice is a programming error and
// panics.
func (r *Registry) Register(def *Definition) {
	if def == nil || def.Kind == "" || def.New == nil {
		panic("operator definition needs a kind and a factory")
	}
	if _, exists := r.defs[def.Kind]; exists {
		panic(fmt.Sprintf("operator kind '%s' already registered", def.Kind))
	}
	slog.Debug("Registering operator kind.", "kind", def.Kind)
	r.defs[def.Kind] = def
}

// Lookup returns the definition of kind.
func (r *Registry) Lookup(kind string) (*Definition, bool) {
	def, ok := r.defs[kind]
	return def, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
