package http_client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout = 30 * time.Second
	formatJSON     = "json"
	formatRaw      = "raw"
)

type request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Format  string
}

func decodeRequest(spec *registry.Spec) (*request, error) {
	var (
		r   request
		err error
	)
	if r.URL, err = spec.String("url", ""); err != nil {
		return nil, err
	}
	if r.Method, err = spec.String("method", http.MethodGet); err != nil {
		return nil, err
	}
	if r.Format, err = spec.String("format", formatJSON); err != nil {
		return nil, err
	}
	if r.Format != formatJSON && r.Format != formatRaw {
		return nil, spec.Errorf("argument 'format' must be %q or %q, got %q", formatJSON, formatRaw, r.Format)
	}
	if v, ok, err := spec.Value("headers"); err != nil {
		return nil, err
	} else if ok && !v.IsNull() {
		if !v.CanIterateElements() {
			return nil, spec.Errorf("argument 'headers' must be a map of strings")
		}
		r.Headers = make(map[string]string)
		for it := v.ElementIterator(); it.Next(); {
			k, hv := it.Element()
			if hv.Type() != cty.String || hv.IsNull() {
				return nil, spec.Errorf("header '%s' must be a string", k.AsString())
			}
			r.Headers[k.AsString()] = hv.AsString()
		}
	}
	if v, ok, err := spec.Value("body"); err != nil {
		return nil, err
	} else if ok {
		goVal, err := data.ToGo(v)
		if err != nil {
			return nil, spec.Errorf("argument 'body': %v", err)
		}
		if r.Body, err = json.Marshal(goVal); err != nil {
			return nil, spec.Errorf("argument 'body': %v", err)
		}
	}
	return &r, nil
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// fetch issues its request from a future and then emits the rows as one
// batch.
type fetch struct {
	processor.Ports
	name    string
	req     *request
	client  *http.Client
	pending *data.Block
	done    bool
}

func newFetch(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	req, err := decodeRequest(spec)
	if err != nil {
		return nil, err
	}
	timeout, err := spec.Duration("timeout", defaultTimeout)
	if err != nil {
		return nil, err
	}
	return &fetch{
		Ports:  processor.NewPorts(0, 1),
		name:   spec.Address.String(),
		req:    req,
		client: newClient(timeout),
	}, nil
}

func (f *fetch) PollState() processor.State {
	switch {
	case f.Out[0].IsFinished():
		return processor.Finished
	case f.pending != nil:
		if f.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	case f.done:
		return processor.Finished
	default:
		return processor.WaitingAsync
	}
}

func (f *fetch) Step(context.Context) error {
	if f.Out[0].Push(*f.pending) {
		f.pending = nil
	}
	return nil
}

func (f *fetch) BeginAsync(context.Context) processor.Future {
	return func(ctx context.Context) error {
		defer f.client.CloseIdleConnections()
		rows, err := f.do(ctx)
		if err != nil {
			return err
		}
		f.done = true
		if len(rows) > 0 {
			b := data.NewBlock(rows...)
			f.pending = &b
		}
		return nil
	}
}

func (f *fetch) do(ctx context.Context) ([]cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Making HTTP request.", "processor", f.name, "method", f.req.Method, "url", f.req.URL)

	var body io.Reader
	if f.req.Body != nil {
		body = bytes.NewReader(f.req.Body)
	}
	req, err := http.NewRequestWithContext(ctx, f.req.Method, f.req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range f.req.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Debug("Received HTTP response.", "processor", f.name, "status", resp.Status, "bytes", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %s", f.req.Method, f.req.URL, resp.Status)
	}
	if f.req.Format == formatRaw {
		return []cty.Value{cty.ObjectVal(map[string]cty.Value{
			"status_code": cty.NumberIntVal(int64(resp.StatusCode)),
			"body":        cty.StringVal(string(raw)),
		})}, nil
	}
	return jsonRows(raw)
}

// jsonRows decodes a JSON document into rows. An empty body has no rows.
func jsonRows(raw []byte) ([]cty.Value, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}
	v, err := data.FromGo(doc)
	if err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}
	if v.IsNull() {
		return nil, nil
	}
	return data.Rows(v), nil
}
