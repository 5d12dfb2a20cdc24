package env_vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func names(t *testing.T, rows []cty.Value) []string {
	t.Helper()
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		require.True(t, r.Type().IsObjectType())
		out = append(out, r.GetAttr("name").AsString())
	}
	return out
}

func TestEnvRows(t *testing.T) {
	env := []string{"APP_B=2", "APP_A=1", "HOME=/root", "APP_=empty", "BROKEN"}

	testCases := []struct {
		name     string
		prefix   string
		strip    bool
		instance int
		count    int
		expected []string
	}{
		{name: "all sorted", count: 1, expected: []string{"APP_", "APP_A", "APP_B", "HOME"}},
		{name: "prefix", prefix: "APP_", count: 1, expected: []string{"APP_", "APP_A", "APP_B"}},
		{name: "strip drops empty names", prefix: "APP_", strip: true, count: 1, expected: []string{"A", "B"}},
		{name: "second of two instances", instance: 1, count: 2, expected: []string{"APP_A", "HOME"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows := envRows(env, tc.prefix, tc.strip, tc.instance, tc.count)
			assert.Equal(t, tc.expected, names(t, rows))
		})
	}
}

func TestEnvRows_Value(t *testing.T) {
	rows := envRows([]string{"X=a=b"}, "", false, 0, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, "a=b", rows[0].GetAttr("value").AsString())
}
