// Package task defines the unit of work handed between the graph, the task
// queue and the workers.
package task

import "fmt"

// Origin tells where a task was produced.
type Origin uint8

const (
	// Seed tasks are produced when the graph is first scheduled.
	Seed Origin = iota
	// Step tasks are produced by a worker while propagating a step.
	Step
	// Async tasks are produced by the async bridge on future completion.
	Async
)

// Task references a processor that is eligible to be driven. It is produced
// when the processor moves into the queued wake state and consumed exactly
// once by the worker that pops it.
type Task struct {
	// Processor is the processor's index in its graph.
	Processor int
	Origin    Origin
}

func (t Task) String() string {
	return fmt.Sprintf("task(p=%d origin=%d)", t.Processor, t.Origin)
}
