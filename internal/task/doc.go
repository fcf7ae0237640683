// Package task holds the data model shared across the supervisor: the
// identity of a logical Task, a single Task Execution's mutable state, the
// status enum and its transition rules, and the small value types used by
// configuration resolution (secret locations and cached secrets).
//
// Nothing in this package performs I/O. It exists so that the supervisor,
// API client, and config resolver can all refer to the same vocabulary
// without import cycles.
package task
