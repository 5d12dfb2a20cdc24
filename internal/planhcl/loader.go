package planhcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Loader reads plan files.
type Loader struct{}

// NewLoader creates a new HCL plan loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under paths and merges their operators into
// one plan. Missing paths are skipped; the merged plan is validated.
func (l *Loader) Load(ctx context.Context, paths ...string) (*plan.Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL plan loader started.", "path_count", len(paths))

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl plan files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	p := plan.New()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		ops, err := l.decode(ctx, hclFile)
		if err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
		p.Operators = append(p.Operators, ops...)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL plan loading complete.", "operators", len(p.Operators))
	return p, nil
}

// Parse decodes a single plan document held in memory.
func (l *Loader) Parse(ctx context.Context, src []byte, filename string) (*plan.Plan, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	ops, err := l.decode(ctx, hclFile)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HCL %s: %w", filename, err)
	}
	p := plan.New(ops...)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (l *Loader) decode(ctx context.Context, file *hcl.File) ([]*plan.Operator, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}

	ops := make([]*plan.Operator, 0, len(root.Operators))
	for _, block := range root.Operators {
		op, err := translateOperator(ctx, block)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// translateOperator converts the HCL operator block into the plan model.
func translateOperator(ctx context.Context, b *operatorBlock) (*plan.Operator, error) {
	logger := ctxlog.FromContext(ctx).With("operator_kind", b.Kind, "operator_name", b.Name)
	logger.Debug("Translating HCL operator to plan model.")

	op := plan.Op(b.Kind, b.Name)
	op.DeclRange = b.DeclRange

	if isExprDefined(b.Inputs) {
		inputs, err := decodeInputs(b.Inputs)
		if err != nil {
			return nil, fmt.Errorf("operator %s: %w", op.Key(), err)
		}
		op.Inputs = inputs
	}

	if isExprDefined(b.Parallelism) {
		n, err := decodeParallelism(b.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("operator %s: %w", op.Key(), err)
		}
		op.Parallelism = n
	}

	if b.Arguments != nil {
		attrs, diags := b.Arguments.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("operator %s arguments: %w", op.Key(), diags)
		}
		for name, attr := range attrs {
			op.Set(name, attr.Expr)
		}
	}
	return op, nil
}

// isExprDefined reports whether an optional attribute was written in the
// source. gohcl fills omitted attributes with zero-width placeholder
// expressions, so a nil check is not enough.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

// decodeInputs accepts `[kind.name, "kind.name"]`.
func decodeInputs(expr hcl.Expression) ([]string, error) {
	elems, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("inputs must be a list: %w", diags)
	}

	inputs := make([]string, 0, len(elems))
	for _, e := range elems {
		if trav, diags := hcl.AbsTraversalForExpr(e); !diags.HasErrors() {
			key, err := traversalKey(trav)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, key)
			continue
		}

		v, diags := e.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid input reference: %w", diags)
		}
		if v.IsNull() || v.Type() != cty.String {
			return nil, fmt.Errorf("input reference at %s must be kind.name", e.Range())
		}
		inputs = append(inputs, v.AsString())
	}
	return inputs, nil
}

func traversalKey(trav hcl.Traversal) (string, error) {
	if len(trav) != 2 {
		return "", fmt.Errorf("input reference at %s must be kind.name", trav.SourceRange())
	}
	attr, ok := trav[1].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("input reference at %s must be kind.name", trav.SourceRange())
	}
	return trav.RootName() + "." + attr.Name, nil
}

func decodeParallelism(expr hcl.Expression) (int, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return 0, fmt.Errorf("invalid parallelism: %w", diags)
	}
	v, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("invalid parallelism: %w", err)
	}
	var n int
	if err := gocty.FromCtyValue(v, &n); err != nil {
		return 0, fmt.Errorf("invalid parallelism: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("parallelism must be at least 1, got %d", n)
	}
	return n, nil
}

// findAllHCLFiles walks all given paths and returns a sorted, de-duplicated
// list of .hcl files.
func findAllHCLFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(p string) {
		seen[filepath.Clean(p)] = struct{}{}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}
