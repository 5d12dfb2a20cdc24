// Package meta implements the metadata service: DDL commands are written as
// log entries and applied to a state machine, and reads are served from the
// same state.
//
// # Why Meta Exists
//
// Query execution needs databases, tables and tenant quotas to be stored
// somewhere every node agrees on. Node is a single-node stand-in for a
// replicated store with the same two entry points:
//   - **Write:** append a LogEntry and apply its command in one bbolt
//     transaction, returning the previous and current versioned values
//   - **ConsistentRead:** run a typed query against the applied state
//
// # Versions
//
// Every stored value is a SeqV: the data plus the sequence number of the
// write that produced it. Callers use sequence numbers for optimistic
// updates (UpsertTableOptions); a mismatch is reported, never retried.
//
// # Handler
//
// Handler turns requests with IfExists/IfNotExists semantics into log
// entries and interprets the resulting Change, returning typed errors such
// as ErrDatabaseAlreadyExists or *TableVersionMismatchError.
package meta
