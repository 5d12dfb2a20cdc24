package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Spec is everything a factory knows about the instance it builds.
type Spec struct {
	Address     nodeid.Address
	Instance    int
	Parallelism int
	// Inputs and Outputs are the number of ports the pipeline will connect.
	Inputs  int
	Outputs int
	Args    map[string]hcl.Expression
	Env     *Env
}

// EvalContext returns the context static arguments are evaluated in. It
// exposes instance.index and instance.count.
func (s *Spec) EvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"instance": cty.ObjectVal(map[string]cty.Value{
				"index": cty.NumberIntVal(int64(s.Instance)),
				"count": cty.NumberIntVal(int64(s.Parallelism)),
			}),
		},
	}
}

// Errorf returns an error prefixed with the instance address.
func (s *Spec) Errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %s", s.Address, fmt.Sprintf(format, args...))
}

// Has reports whether the argument was given.
func (s *Spec) Has(name string) bool {
	_, ok := s.Args[name]
	return ok
}

// Expr returns the raw expression of an argument that is evaluated later,
// typically once per row.
func (s *Spec) Expr(name string) (hcl.Expression, bool) {
	expr, ok := s.Args[name]
	return expr, ok
}

// Value evaluates a static argument. The second result is false if the
// argument is absent.
func (s *Spec) Value(name string) (cty.Value, bool, error) {
	expr, ok := s.Args[name]
	if !ok {
		return cty.NilVal, false, nil
	}
	v, diags := expr.Value(s.EvalContext())
	if diags.HasErrors() {
		return cty.NilVal, true, s.Errorf("argument '%s': %s", name, diags.Error())
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, true, s.Errorf("argument '%s' is not known before execution", name)
	}
	return v, true, nil
}

func (s *Spec) decode(name string, ty cty.Type, target any) (bool, error) {
	v, ok, err := s.Value(name)
	if err != nil || !ok {
		return ok, err
	}
	if v.IsNull() {
		return false, nil
	}
	v, err = convert.Convert(v, ty)
	if err != nil {
		return true, s.Errorf("argument '%s': %v", name, err)
	}
	if err := gocty.FromCtyValue(v, target); err != nil {
		return true, s.Errorf("argument '%s': %v", name, err)
	}
	return true, nil
}

// Int decodes an integer argument, returning def if it is absent.
func (s *Spec) Int(name string, def int64) (int64, error) {
	var out int64
	ok, err := s.decode(name, cty.Number, &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// String decodes a string argument, returning def if it is absent.
func (s *Spec) String(name, def string) (string, error) {
	var out string
	ok, err := s.decode(name, cty.String, &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// Bool decodes a boolean argument, returning def if it is absent.
func (s *Spec) Bool(name string, def bool) (bool, error) {
	var out bool
	ok, err := s.decode(name, cty.Bool, &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// Duration decodes a Go duration string such as "250ms".
func (s *Spec) Duration(name string, def time.Duration) (time.Duration, error) {
	raw, err := s.String(name, "")
	if err != nil || raw == "" {
		return def, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, s.Errorf("argument '%s': %v", name, err)
	}
	return d, nil
}

// CheckArgs verifies that args only uses declared parameters and provides
// every required one.
func (d *Definition) CheckArgs(args map[string]hcl.Expression) error {
	var errs []string
	allowed := make(map[string]struct{}, len(d.Params))
	for _, p := range d.Params {
		allowed[p] = struct{}{}
	}
	for name := range args {
		if _, ok := allowed[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown argument '%s'", name))
		}
	}
	for _, name := range d.Required {
		if _, ok := args[name]; !ok {
			errs = append(errs, fmt.Sprintf("missing required argument '%s'", name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	sort.Strings(errs)
	return fmt.Errorf("operator kind '%s': %s", d.Kind, strings.Join(errs, "; "))
}
