// Package processor defines the contract every operator instance implements
// to take part in a dataflow graph.
//
// # Why Processor Exists
//
// The scheduler must drive scans, filters, aggregates and exchanges without
// knowing what any of them do. Processor is the closed capability set the
// scheduler relies on:
//   - **PollState:** a pure readiness check based on port flags and the
//     processor's own buffers
//   - **Step:** one bounded unit of work (consume at most one input block,
//     produce at most one output block)
//   - **BeginAsync:** for processors that must wait on I/O, the operation to
//     run off the worker pool
//
// # Ports
//
// A processor owns its InputPorts and OutputPorts. The graph binds each port
// to exactly one edge at build time and attaches a Recorder, so that after a
// step it knows which edges were filled, finished, drained or closed and can
// re-evaluate only those neighbours.
//
// # Rules
//
//   - Step must never block. Network or disk waits go through BeginAsync.
//   - The Future returned by BeginAsync must not touch ports. It stores its
//     result in the processor and the next Step publishes it.
//   - A processor that is starved on one input but holds output for another
//     port decides in PollState whether it can progress.
package processor
