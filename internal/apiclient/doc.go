// Package apiclient talks HTTP+JSON to the Task Management service: the
// four logical operations create_execution, heartbeat, update, and
// finalize, each wrapped in a retry/circuit-breaker engine
// with its own deadline budget, plus the sampling gate that lets an
// execution go unreported except on failure/timeout.
//
// Inside the retry engine each HTTP attempt is classified into a tagged
// Outcome rather than using errors for control flow: the loop branches on
// Outcome.Kind instead of inspecting error chains. The public operations
// themselves return a plain error once the engine gives up.
package apiclient
