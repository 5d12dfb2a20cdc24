package plan

import (
	"errors"
	"fmt"
	"maps"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

// Plan is an ordered list of operators.
type Plan struct {
	Operators []*Operator
}

// Operator is one logical operator of a plan.
type Operator struct {
	Kind string
	Name string
	// Parallelism is the number of processor instances; zero means one.
	Parallelism int
	// Inputs are the `kind.name` keys of upstream operators, in port order.
	Inputs    []string
	Arguments map[string]hcl.Expression
	// DeclRange points at the definition in a plan file, if any.
	DeclRange hcl.Range
}

// New returns a plan holding ops in order.
func New(ops ...*Operator) *Plan {
	return &Plan{Operators: ops}
}

// Op starts building an operator reading from inputs.
func Op(kind, name string, inputs ...string) *Operator {
	return &Operator{Kind: kind, Name: name, Inputs: inputs, Arguments: map[string]hcl.Expression{}}
}

// Parallel sets the instance count.
func (o *Operator) Parallel(n int) *Operator {
	o.Parallelism = n
	return o
}

// Set stores an argument expression.
func (o *Operator) Set(name string, expr hcl.Expression) *Operator {
	if o.Arguments == nil {
		o.Arguments = make(map[string]hcl.Expression)
	}
	o.Arguments[name] = expr
	return o
}

// SetValue stores a literal argument.
func (o *Operator) SetValue(name string, v cty.Value) *Operator {
	return o.Set(name, Literal(v))
}

// Key returns the `kind.name` identifier other operators use as input.
func (o *Operator) Key() string {
	return o.Address().OperatorKey()
}

// Address returns the operator address without an instance index.
func (o *Operator) Address() nodeid.Address {
	return nodeid.Operator(o.Kind, o.Name)
}

// Instances returns the effective parallelism.
func (o *Operator) Instances() int {
	if o.Parallelism <= 0 {
		return 1
	}
	return o.Parallelism
}

// Clone returns a copy that shares argument expressions.
func (o *Operator) Clone() *Operator {
	c := *o
	c.Inputs = append([]string(nil), o.Inputs...)
	c.Arguments = maps.Clone(o.Arguments)
	return &c
}

// Lookup finds an operator by key.
func (p *Plan) Lookup(key string) (*Operator, bool) {
	for _, op := range p.Operators {
		if op.Key() == key {
			return op, true
		}
	}
	return nil, false
}

// Validate checks the plan's shape: unique well-formed keys, known inputs
// and sane parallelism. Argument contents are checked when the pipeline is
// built.
func (p *Plan) Validate() error {
	if p == nil || len(p.Operators) == 0 {
		return errors.New("plan has no operators")
	}

	var errs []error
	seen := make(map[string]struct{}, len(p.Operators))
	for _, op := range p.Operators {
		key := op.Key()
		if _, err := nodeid.Parse(key); err != nil {
			errs = append(errs, fmt.Errorf("operator %q: %w", key, err))
			continue
		}
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("operator %q is defined more than once", key))
		}
		seen[key] = struct{}{}
		if op.Parallelism < 0 {
			errs = append(errs, fmt.Errorf("operator %q: parallelism must not be negative, got %d", key, op.Parallelism))
		}
	}
	for _, op := range p.Operators {
		for _, in := range op.Inputs {
			if in == op.Key() {
				errs = append(errs, fmt.Errorf("operator %q reads from itself", op.Key()))
				continue
			}
			if _, ok := seen[in]; !ok {
				errs = append(errs, fmt.Errorf("operator %q reads from unknown operator %q", op.Key(), in))
			}
		}
	}
	return errors.Join(errs...)
}

// Literal wraps a constant as an expression.
func Literal(v cty.Value) hcl.Expression {
	return hcl.StaticExpr(v, hcl.Range{Filename: "<literal>"})
}

// ParseExpr parses HCL expression source such as `row % 2 == 0`.
func ParseExpr(src string) (hcl.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<expr>", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid expression %q: %w", src, diags)
	}
	return expr, nil
}

// MustParseExpr is like ParseExpr but panics on error.
func MustParseExpr(src string) hcl.Expression {
	expr, err := ParseExpr(src)
	if err != nil {
		panic(err)
	}
	return expr
}
