// Package scheduler provides the task queue workers pull processor-ready
// events from.
//
// # Why Queue Exists
//
// Workers need a place to find the next processor to drive that is cheap
// under contention and keeps a worker close to the data it just produced.
// Queue is a two-tier structure:
//   - **Global FIFO:** tasks with no thread affinity, such as seeds and
//     completions delivered by the async bridge
//   - **Local FIFOs:** one per worker, fed by the tasks that worker's own
//     steps produced
//
// # Pop Order
//
// A worker looks in its own local queue, then the global queue, then steals
// from its siblings' local queues, and only then parks on a condition
// variable. Parking is cheap to avoid on the push side: a pusher only takes
// the park lock when at least one worker is idle.
//
// # Stall Detection
//
// When every worker is parked and nothing is queued, the queue asks the
// caller-supplied quiescence check whether anything can still produce work
// (for example an asynchronous operation in flight). If not, the graph can
// never make progress; the queue closes itself and reports the stall.
//
// # Thread-Safety
//
// All methods are safe for concurrent use. Each local queue has its own
// mutex, so workers contend only when stealing.
package scheduler
