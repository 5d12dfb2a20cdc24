/*
Package nodeid provides a structured, type-safe representation for
processor identifiers within an execution graph.

The canonical format is `kind.name[instance]`, e.g. `filter.even[1]`. The
instance suffix is optional when the identifier refers to a plan operator
as a whole (`filter.even`), which is how plan inputs name their upstreams.

This package enforces the identifier schema and centralizes all
formatting and parsing logic.
*/
package nodeid
