package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestInts(t *testing.T) {
	b := Ints(1, 2, 3)
	require.Equal(t, 3, b.Len())
	assert.False(t, b.IsEmpty())

	v, err := Int64(b.Rows[2])
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestInt64_Errors(t *testing.T) {
	_, err := Int64(cty.StringVal("x"))
	require.Error(t, err)

	_, err = Int64(cty.NumberFloatVal(1.5))
	require.Error(t, err)

	_, err = Int64(cty.NullVal(cty.Number))
	require.Error(t, err)
}

func TestToGo(t *testing.T) {
	testCases := []struct {
		name     string
		in       cty.Value
		expected any
	}{
		{name: "int", in: cty.NumberIntVal(7), expected: int64(7)},
		{name: "float", in: cty.NumberFloatVal(1.5), expected: 1.5},
		{name: "string", in: cty.StringVal("a"), expected: "a"},
		{name: "bool", in: cty.True, expected: true},
		{name: "null", in: cty.NullVal(cty.String), expected: nil},
		{
			name:     "object",
			in:       cty.ObjectVal(map[string]cty.Value{"id": cty.NumberIntVal(1), "name": cty.StringVal("x")}),
			expected: map[string]any{"id": int64(1), "name": "x"},
		},
		{
			name:     "tuple",
			in:       cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("b")}),
			expected: []any{int64(1), "b"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ToGo(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestFromGo(t *testing.T) {
	in := map[string]any{
		"id":   float64(3),
		"tags": []any{"a", true},
		"gone": nil,
	}

	v, err := FromGo(in)
	require.NoError(t, err)

	assert.True(t, v.GetAttr("id").Equals(cty.NumberIntVal(3)).True())
	assert.Equal(t, cty.StringVal("a"), v.GetAttr("tags").Index(cty.NumberIntVal(0)))
	assert.True(t, v.GetAttr("gone").IsNull())

	_, err = FromGo(struct{}{})
	require.Error(t, err)
}

func TestRows(t *testing.T) {
	tuple := cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("x")})
	assert.Equal(t, []cty.Value{cty.NumberIntVal(1), cty.StringVal("x")}, Rows(tuple))

	obj := cty.ObjectVal(map[string]cty.Value{"a": cty.True})
	assert.Equal(t, []cty.Value{obj}, Rows(obj))
	assert.Len(t, Rows(cty.NullVal(cty.DynamicPseudoType)), 1)
}
