// Package process spawns and supervises the wrapped child command:
// shell-mode resolution, process-group signaling, the terminate-then-kill
// termination protocol, and concurrent stdout/stderr capture.
package process
