package operators

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// rowExpr evaluates an expression once per row. It reuses one EvalContext,
// which is safe because a processor is only driven by one goroutine at a
// time.
type rowExpr struct {
	name string
	expr hcl.Expression
	ctx  *hcl.EvalContext
}

// newRowExpr returns nil when the argument is absent.
func newRowExpr(spec *registry.Spec, name string) *rowExpr {
	expr, ok := spec.Expr(name)
	if !ok {
		return nil
	}
	return &rowExpr{name: name, expr: expr, ctx: spec.EvalContext()}
}

func (e *rowExpr) eval(row cty.Value) (cty.Value, error) {
	if e == nil {
		return row, nil
	}
	e.ctx.Variables["row"] = row
	v, diags := e.expr.Value(e.ctx)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating %s: %s", e.name, diags.Error())
	}
	return v, nil
}

// test evaluates a boolean expression. Null counts as false.
func (e *rowExpr) test(row cty.Value) (bool, error) {
	v, err := e.eval(row)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if !v.IsKnown() || v.Type() != cty.Bool {
		return false, fmt.Errorf("%s must evaluate to a bool, got %s", e.name, v.Type().FriendlyName())
	}
	return v.True(), nil
}
