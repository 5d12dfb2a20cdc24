package http_client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specialistvlad/burstflow/internal/operators"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/specialistvlad/burstflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func runFetch(t *testing.T, op *plan.Operator) ([]cty.Value, error) {
	t.Helper()
	reg := registry.NewWithModules(operators.Module{}, &Module{})
	res, err := testutil.Run(t, reg, nil, op, plan.Op("sink", "out", op.Key()))
	return res.Rows("out"), err
}

func TestFetch_JSONArray(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Auth"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":1},{"id":2},{"id":3}]`)
	}))
	defer srv.Close()

	op := plan.Op(Kind, "api").
		SetValue("url", cty.StringVal(srv.URL)).
		SetValue("headers", cty.ObjectVal(map[string]cty.Value{"X-Auth": cty.StringVal("token")}))

	// Act
	rows, err := runFetch(t, op)

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[2].GetAttr("id").Equals(cty.NumberIntVal(3)).True())
}

func TestFetch_PostBodyRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.JSONEq(t, `{"q":"x"}`, string(body))
		_, _ = io.WriteString(w, "accepted")
	}))
	defer srv.Close()

	op := plan.Op(Kind, "api").
		SetValue("url", cty.StringVal(srv.URL)).
		SetValue("method", cty.StringVal(http.MethodPost)).
		SetValue("body", cty.ObjectVal(map[string]cty.Value{"q": cty.StringVal("x")})).
		SetValue("format", cty.StringVal("raw"))

	rows, err := runFetch(t, op)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "accepted", rows[0].GetAttr("body").AsString())
	assert.True(t, rows[0].GetAttr("status_code").Equals(cty.NumberIntVal(200)).True())
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := runFetch(t, plan.Op(Kind, "api").SetValue("url", cty.StringVal(srv.URL)))

	require.ErrorContains(t, err, "unexpected status 503")
}

func TestJSONRows(t *testing.T) {
	rows, err := jsonRows([]byte(`{"a":true}`))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = jsonRows([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = jsonRows([]byte("{"))
	require.Error(t, err)
}
