// Package graph holds the processors and edges of one executing query and
// decides which processors become drivable after every step.
//
// # Why Graph Exists
//
// Workers must never scan the whole plan to find work. The graph turns every
// step into a small set of notifications:
//   - **Self:** the processor that just ran is polled again
//   - **Downstream:** consumers of edges it filled or finished
//   - **Upstream:** producers of edges it drained or closed
//
// Ports record which edges a step touched, so propagation is O(degree).
//
// # Layout
//
// The graph is an arena. Processors and edges live in slices and refer to
// each other by integer index, so nothing holds a pointer to a neighbour:
//
//	 node 0 ──edge 0──▶ node 1 ──edge 1──▶ node 2 (sink)
//	 producer[0]=0        producer[1]=1
//	 consumer[0]=1        consumer[1]=2
//
// # Wake Word
//
// Every node carries one atomic word with the states idle, queued, running,
// async and done, plus a dirty bit. It is the only thing that keeps two
// workers from driving the same processor:
//
//	idle ──notify──▶ queued ──Claim──▶ running ──release──▶ idle
//	                                     │  ▲
//	                         notify sets │  │ re-poll
//	                               dirty ▼  │
//	                               running|dirty
//
// A notification that finds a node running or async only sets dirty. The
// worker clears dirty and re-polls before releasing, so no wake-up is lost and
// a running processor is never queued twice. A processor that parks itself in
// WaitingAsync after a step gets its future started by that same task; only
// the future's completion moves it from async back to queued.
//
// # Lifecycle
//
//  1. **Build:** Builder adds processors and connects ports; cycles are
//     rejected
//  2. **Attach/Seed:** the executor attaches its queue and seeds every node
//  3. **Drive:** workers Claim and Drive tasks until the graph stops
//  4. **Finalize:** after workers join, live processors are marked Cancelled
//
// # Termination
//
// The graph completes once every sink (a processor without outputs) is
// Finished. The first failure, or an external Cancel, stops it instead. All
// three paths go through one sync.Once, so the first cause wins.
package graph
