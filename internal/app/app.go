package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/meta"
	"github.com/specialistvlad/burstflow/internal/metrics"
	"github.com/specialistvlad/burstflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx      context.Context
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	promReg  *prometheus.Registry
	metrics  *metrics.Metrics

	metaOnce sync.Once
	metaNode *meta.Node
	metaErr  error

	httpServer *http.Server
}

// NewApp is the constructor for the main application. Logs go to logW and
// query results to outW. With no modules the core modules are registered.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.NewWithModules(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "kinds", reg.Kinds())

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	return &App{
		ctx:      ctxlog.WithLogger(context.Background(), logger),
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		promReg:  promReg,
		metrics:  metrics.New(promReg),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Gatherer exposes the application's metrics.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.promReg
}

// Meta opens the metadata service on first use and returns its handler.
func (a *App) Meta() (*meta.Handler, error) {
	a.metaOnce.Do(func() {
		if a.config.MetaPath == "" {
			a.metaErr = fmt.Errorf("metadata service is disabled: no meta-path configured")
			return
		}
		a.metaNode, a.metaErr = meta.Open(a.config.MetaPath)
		if a.metaErr == nil {
			a.logger.Debug("Metadata service opened.", "path", a.config.MetaPath)
		}
	})
	if a.metaErr != nil {
		return nil, a.metaErr
	}
	return meta.NewHandler(a.metaNode, a.metrics), nil
}

// Close releases the health check server and the metadata store.
func (a *App) Close() error {
	var err error
	err = multierr.Append(err, a.closeHealthCheckServer())
	if a.metaNode != nil {
		err = multierr.Append(err, a.metaNode.Close())
	}
	return err
}
