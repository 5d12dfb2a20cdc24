// Package runtime is the entry point for running a physical plan.
//
// A Runtime compiles a plan.Plan into a graph with the operator registry,
// hands the graph to an executor.Executor strategy and collects what the
// sinks produce into a ResultStream. Each query owns its graph, its
// executor state and its result buffer; nothing is shared between queries
// except the registry and the metrics.
//
// Queries stop in one of four ways: they complete, a processor fails, the
// caller cancels them, or the configured timeout fires. The timeout is a
// cancellation whose cause is executor.ErrTimeout.
package runtime
