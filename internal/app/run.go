package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/executor"
	"github.com/specialistvlad/burstflow/internal/localexecutor"
	"github.com/specialistvlad/burstflow/internal/planhcl"
	"github.com/specialistvlad/burstflow/internal/runtime"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Run loads the plan files at paths, executes them and writes every result
// row to the output as a JSON line prefixed with its sink name.
func (a *App) Run(ctx context.Context, paths ...string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "paths", paths)

	a.startHealthCheckServer()

	p, err := planhcl.NewLoader().Load(ctx, paths...)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	a.logger.Debug("Plan loaded.", "operators", len(p.Operators))

	opts := runtime.Options{
		Registry: a.registry,
		Executor: a.newExecutor(),
		Timeout:  a.config.Timeout,
		Tenant:   a.config.Tenant,
		Output:   a.outW,
		Metrics:  a.metrics,
	}
	if a.config.MetaPath != "" {
		h, err := a.Meta()
		if err != nil {
			return fmt.Errorf("failed to open metadata service: %w", err)
		}
		opts.Meta = h
	}

	a.logger.Info("🚀 Starting execution...", "executor", a.config.Executor)
	stream, err := runtime.New(opts).Execute(ctx, p)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	if err := a.writeResults(ctx, stream); err != nil {
		return err
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}

func (a *App) newExecutor() executor.Executor {
	opts := localexecutor.Options{
		Workers:       a.config.Workers,
		AsyncPoolSize: a.config.AsyncPoolSize,
		GracePeriod:   a.config.GracePeriod,
		Metrics:       a.metrics,
	}
	if a.config.Executor == ExecutorInline {
		return localexecutor.NewInline(opts)
	}
	return localexecutor.New(opts)
}

func (a *App) writeResults(ctx context.Context, stream *runtime.ResultStream) error {
	for {
		b, err := stream.NextBatch(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, row := range b.Block.Rows {
			v, err := data.ToGo(row)
			if err != nil {
				return fmt.Errorf("converting result row: %w", err)
			}
			line, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding result row: %w", err)
			}
			if _, err := fmt.Fprintf(a.outW, "%s\t%s\n", b.Sink, line); err != nil {
				return err
			}
		}
	}
}
