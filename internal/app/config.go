package app

import (
	"errors"
	"fmt"
	"time"
)

// Executor strategies selectable by Config.Executor.
const (
	ExecutorThreads = "threads"
	ExecutorInline  = "inline"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Workers is the threaded executor's pool size; zero means GOMAXPROCS.
	Workers       int
	Executor      string
	Timeout       time.Duration
	GracePeriod   time.Duration
	AsyncPoolSize int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// MetaPath is the bbolt file of the metadata service. Empty disables
	// it for plan runs.
	MetaPath string
	Tenant   string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.Executor == "" {
		cfg.Executor = ExecutorThreads
	}
	if cfg.Executor != ExecutorThreads && cfg.Executor != ExecutorInline {
		errs = append(errs, fmt.Errorf("invalid executor %q: must be '%s' or '%s'", cfg.Executor, ExecutorThreads, ExecutorInline))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", cfg.Workers))
	}
	if cfg.AsyncPoolSize < 0 {
		errs = append(errs, fmt.Errorf("async-pool-size must not be negative, got %d", cfg.AsyncPoolSize))
	}
	if cfg.Timeout < 0 || cfg.GracePeriod < 0 {
		errs = append(errs, errors.New("timeout and grace-period must not be negative"))
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, errors.New("invalid log-format: must be 'text' or 'json'"))
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck-port %d", cfg.HealthcheckPort))
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "default"
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
