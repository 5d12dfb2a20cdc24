// Package plan defines the format-agnostic execution plan: a list of
// operators with explicit dependencies.
//
// A Plan is what the planner (or a plan file, see planhcl) hands to the
// runtime. It names operators by `kind.name`, never by processor instance;
// expanding an operator into `parallelism` processor instances and wiring
// their edges is the job of the pipeline package.
//
// Arguments stay raw hcl.Expression values. Some are evaluated once when a
// processor is built (`batch_size`, `n`), others once per row with `row`
// bound (`predicate`, `expr`). The plan does not know which is which; the
// operator kinds do.
package plan
