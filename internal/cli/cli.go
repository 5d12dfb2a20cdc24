package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/specialistvlad/burstflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const envPrefix = "BURSTFLOW"

// Configuration keys. Each is a persistent flag, an environment variable
// BURSTFLOW_<KEY> with dashes turned into underscores, and a config file key.
const (
	keyWorkers         = "workers"
	keyExecutor        = "executor"
	keyTimeout         = "timeout"
	keyGracePeriod     = "grace-period"
	keyAsyncPoolSize   = "async-pool-size"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
	keyHealthcheckPort = "healthcheck-port"
	keyMetaPath        = "meta-path"
	keyTenant          = "tenant"
	keyConfig          = "config"
)

// Execute parses args and runs the selected command. Results go to outW,
// logs and usage to errW.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := newRootCmd(outW, errW)
	root.SetArgs(args)
	root.SetOut(outW)
	root.SetErr(errW)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Message: err.Error()}
}

// env holds what every subcommand needs: the viper instance and the
// writers.
type env struct {
	v          *viper.Viper
	outW, errW io.Writer
}

func newRootCmd(outW, errW io.Writer) *cobra.Command {
	e := &env{v: viper.New(), outW: outW, errW: errW}

	root := &cobra.Command{
		Use:           "burstflow",
		Short:         "Burstflow - a pipelined dataflow execution engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.Int(keyWorkers, 0, "Number of worker goroutines; 0 uses GOMAXPROCS.")
	flags.String(keyExecutor, app.ExecutorThreads, "Executor strategy: 'threads' or 'inline'.")
	flags.Duration(keyTimeout, 0, "Cancel a query that runs longer than this; 0 disables.")
	flags.Duration(keyGracePeriod, 0, "How long to wait for in-flight async operations after a query stops.")
	flags.Int(keyAsyncPoolSize, 0, "Maximum concurrently running async operations.")
	flags.String(keyLogLevel, "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.String(keyLogFormat, "text", "Log output format. Options: 'text' or 'json'.")
	flags.Int(keyHealthcheckPort, 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	flags.String(keyMetaPath, "", "Path of the metadata database file.")
	flags.String(keyTenant, "default", "Tenant for metadata operations and plan runs.")
	flags.String(keyConfig, "", "Optional YAML or TOML config file.")

	root.AddCommand(newRunCmd(e), newMetaCmd(e))
	return root
}

// load binds the flags to viper and reads the config file.
func (e *env) load(cmd *cobra.Command) error {
	if err := e.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	e.v.SetEnvPrefix(envPrefix)
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	if path := e.v.GetString(keyConfig); path != "" {
		e.v.SetConfigFile(path)
		if err := e.v.ReadInConfig(); err != nil {
			return &ExitError{Code: 2, Message: fmt.Sprintf("reading config file: %v", err)}
		}
	}
	return nil
}

// config validates the merged settings.
func (e *env) config() (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		Workers:         e.v.GetInt(keyWorkers),
		Executor:        strings.ToLower(e.v.GetString(keyExecutor)),
		Timeout:         e.v.GetDuration(keyTimeout),
		GracePeriod:     e.v.GetDuration(keyGracePeriod),
		AsyncPoolSize:   e.v.GetInt(keyAsyncPoolSize),
		LogLevel:        strings.ToLower(e.v.GetString(keyLogLevel)),
		LogFormat:       strings.ToLower(e.v.GetString(keyLogFormat)),
		HealthcheckPort: e.v.GetInt(keyHealthcheckPort),
		MetaPath:        e.v.GetString(keyMetaPath),
		Tenant:          e.v.GetString(keyTenant),
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

// withApp builds the App for one command and closes it afterwards.
func (e *env) withApp(fn func(a *app.App) error) (err error) {
	cfg, err := e.config()
	if err != nil {
		return err
	}
	a := app.NewApp(e.outW, e.errW, cfg)
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run PLAN_PATH...",
		Short: "Execute the plan defined by one or more .hcl files or directories.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(func(a *app.App) error {
				return a.Run(cmd.Context(), args...)
			})
		},
	}
}
