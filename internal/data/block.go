// Package data defines the payload moved between processors: a Block is a
// batch of rows, each row a cty.Value. The scheduler never looks inside a
// Block; only operators do.
package data

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// Block is a batch of rows.
type Block struct {
	Rows []cty.Value
}

// NewBlock returns a block holding the given rows.
func NewBlock(rows ...cty.Value) Block {
	return Block{Rows: rows}
}

// Len returns the number of rows in the block.
func (b Block) Len() int {
	return len(b.Rows)
}

// IsEmpty reports whether the block carries no rows.
func (b Block) IsEmpty() bool {
	return len(b.Rows) == 0
}

// Ints builds a block of cty.Number rows.
func Ints(values ...int64) Block {
	rows := make([]cty.Value, len(values))
	for i, v := range values {
		rows[i] = cty.NumberIntVal(v)
	}
	return Block{Rows: rows}
}

// Int64 converts a numeric row to int64.
func Int64(v cty.Value) (int64, error) {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return 0, fmt.Errorf("row %s is not a known number", v.GoString())
	}
	i, acc := v.AsBigFloat().Int64()
	if acc != big.Exact {
		return 0, fmt.Errorf("row %s is not an integer", v.GoString())
	}
	return i, nil
}

// Float64 converts a numeric row to float64.
func Float64(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return 0, fmt.Errorf("row %s is not a known number", v.GoString())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// ToGo converts a cty.Value to a Go interface{} for printing and for tests.
func ToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				i, acc := bf.Int64()
				if acc == big.Exact {
					return i, nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}

// FromGo converts decoded JSON-like Go data (maps, slices, strings,
// float64, bool, nil) into a cty.Value.
func FromGo(v any) (cty.Value, error) {
	switch v := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(v))
		for key, val := range v {
			converted, err := FromGo(val)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[key] = converted
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		elems := make([]cty.Value, 0, len(v))
		for _, val := range v {
			converted, err := FromGo(val)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, converted)
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported type for conversion to cty.Value: %T", v)
	}
}

// Rows spreads a collection value into rows; any other value is one row.
func Rows(v cty.Value) []cty.Value {
	ty := v.Type()
	if v.IsNull() || !v.IsKnown() || !(ty.IsTupleType() || ty.IsListType() || ty.IsSetType()) {
		return []cty.Value{v}
	}
	rows := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, row := it.Element()
		rows = append(rows, row)
	}
	return rows
}
