// Package operators implements the builtin operator kinds.
//
// Every kind is a processor.Processor built by a registry.Factory. Most
// kinds share one of three shapes:
//
//   - **source:** no inputs, produces batches until exhausted (values, range)
//   - **transform:** one input, one output, at most one block in hand
//     (filter, project, limit, fail_after)
//   - **sink:** one input, hands batches to the result collector
//
// The rest (merge, broadcast, aggregate, sort, delay, tenant_quota) have
// their own state machines. Blocks may be shared between consumers after a
// broadcast, so operators never modify the rows of a block they received;
// they build new blocks instead.
//
// Row expressions (`predicate`, `expr`, `key`) are HCL expressions evaluated
// with `row` bound to the current row and `instance` to the instance index
// and count.
package operators
