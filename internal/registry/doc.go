// Package registry provides the central "glue" for the operator system.
//
// The Registry maps the operator kinds used in physical plans (e.g. "filter",
// "remote") to the Go factories that build their processors. Modules register
// their kinds at application start; the pipeline builder looks kinds up while
// compiling a plan into a graph.
//
// Each Definition also declares the arguments its kind accepts, so a plan
// that passes an unknown or misspelled argument is rejected before any
// processor is created.
package registry
