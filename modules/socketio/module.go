// Package socketio provides the `remote` operator kind: an exchange source
// that pulls batches from a socket.io endpoint.
//
// On connect the source emits request_event with the request argument.
// Every data_event payload becomes one batch (a list payload is spread into
// rows); end_event ends the stream.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Kind is the operator kind registered by this module.
const Kind = "remote"

const (
	defaultTimeout  = 10 * time.Second
	messageBacklog  = 16
	defaultDataName = "batch"
	defaultEndName  = "end"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the remote kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Pulls batches from a socket.io endpoint.",
		Inputs:      registry.None,
		Outputs:     registry.One,
		Params:      []string{"url", "namespace", "request_event", "request", "data_event", "end_event", "timeout", "insecure_skip_verify"},
		Required:    []string{"url", "request_event"},
		New:         newRemote,
	})
}

// config holds the decoded arguments.
type config struct {
	URL                string
	Namespace          string
	RequestEvent       string
	Request            any
	DataEvent          string
	EndEvent           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func decodeConfig(spec *registry.Spec) (*config, error) {
	var (
		c   config
		err error
	)
	if c.URL, err = spec.String("url", ""); err != nil {
		return nil, err
	}
	if _, err := url.Parse(c.URL); err != nil || c.URL == "" {
		return nil, spec.Errorf("argument 'url' must be a valid URL")
	}
	if c.Namespace, err = spec.String("namespace", "/"); err != nil {
		return nil, err
	}
	if c.RequestEvent, err = spec.String("request_event", ""); err != nil {
		return nil, err
	}
	if c.DataEvent, err = spec.String("data_event", defaultDataName); err != nil {
		return nil, err
	}
	if c.EndEvent, err = spec.String("end_event", defaultEndName); err != nil {
		return nil, err
	}
	if c.Timeout, err = spec.Duration("timeout", defaultTimeout); err != nil {
		return nil, err
	}
	if c.InsecureSkipVerify, err = spec.Bool("insecure_skip_verify", false); err != nil {
		return nil, err
	}
	if v, ok, err := spec.Value("request"); err != nil {
		return nil, err
	} else if ok {
		if c.Request, err = data.ToGo(v); err != nil {
			return nil, spec.Errorf("argument 'request': %v", err)
		}
	}
	return &c, nil
}

// remote parks on a future for every batch. The connection is opened by
// the first future and closed when the stream ends or the query stops.
type remote struct {
	processor.Ports
	cfg     *config
	clock   quartz.Clock
	ex      *exchange
	pending *data.Block
	ended   bool
}

func newRemote(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	cfg, err := decodeConfig(spec)
	if err != nil {
		return nil, err
	}
	return &remote{Ports: processor.NewPorts(0, 1), cfg: cfg, clock: spec.Env.ClockOrReal()}, nil
}

func (r *remote) PollState() processor.State {
	switch {
	case r.Out[0].IsFinished():
		return processor.Finished
	case r.pending != nil:
		if r.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	case r.ended:
		return processor.Finished
	default:
		return processor.WaitingAsync
	}
}

func (r *remote) Step(context.Context) error {
	if r.Out[0].Push(*r.pending) {
		r.pending = nil
	}
	return nil
}

func (r *remote) BeginAsync(context.Context) processor.Future {
	return func(ctx context.Context) error {
		if r.ex == nil {
			r.ex = dial(ctx, r.cfg)
			context.AfterFunc(ctx, r.ex.close)
		}

		timer := r.clock.NewTimer(r.cfg.Timeout, "remote")
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-timer.C:
			return fmt.Errorf("timed out after %s waiting for event '%s'", r.cfg.Timeout, r.cfg.DataEvent)
		case msg := <-r.ex.msgs:
			switch {
			case msg.err != nil:
				r.ex.close()
				return msg.err
			case msg.end:
				r.ended = true
				r.ex.close()
			case len(msg.rows) > 0:
				b := data.NewBlock(msg.rows...)
				r.pending = &b
			}
			return nil
		}
	}
}

type message struct {
	rows []cty.Value
	end  bool
	err  error
}

// exchange is one socket.io connection feeding a message backlog.
type exchange struct {
	io     *socket.Socket
	msgs   chan message
	closed chan struct{}
	once   sync.Once
}

func dial(ctx context.Context, cfg *config) *exchange {
	logger := ctxlog.FromContext(ctx).With("operator", Kind, "url", cfg.URL, "namespace", cfg.Namespace)
	ex := &exchange{
		msgs:   make(chan message, messageBacklog),
		closed: make(chan struct{}),
	}

	parsedURL, _ := url.Parse(cfg.URL)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	ex.io = manager.Socket(cfg.Namespace, opts)

	ex.io.On(types.EventName("connect"), func(...any) {
		logger.Debug("Connected, requesting data.", "sid", ex.io.Id(), "event", cfg.RequestEvent)
		if cfg.Request != nil {
			ex.io.Emit(cfg.RequestEvent, cfg.Request)
		} else {
			ex.io.Emit(cfg.RequestEvent)
		}
	})
	ex.io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connecting to %s failed", cfg.URL)
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = fmt.Errorf("connecting to %s: %w", cfg.URL, e)
			}
		}
		ex.deliver(message{err: err})
	})
	ex.io.On(types.EventName(cfg.DataEvent), func(payload ...any) {
		rows, err := payloadRows(payload)
		ex.deliver(message{rows: rows, err: err})
	})
	ex.io.On(types.EventName(cfg.EndEvent), func(...any) {
		ex.deliver(message{end: true})
	})

	ex.io.Connect()
	return ex
}

// deliver blocks while the backlog is full, which holds back the socket
// reader, and gives up once the exchange is closed.
func (ex *exchange) deliver(m message) {
	select {
	case ex.msgs <- m:
	case <-ex.closed:
	}
}

func (ex *exchange) close() {
	ex.once.Do(func() {
		close(ex.closed)
		ex.io.Disconnect()
	})
}

// payloadRows converts an event payload into rows.
func payloadRows(payload []any) ([]cty.Value, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	v, err := data.FromGo(payload[0])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if v.IsNull() {
		return nil, nil
	}
	return data.Rows(v), nil
}
