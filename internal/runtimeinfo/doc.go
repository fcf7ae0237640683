// Package runtimeinfo implements the Runtime Metadata Probe:
// detection of the container/orchestrator/serverless/CI execution
// environment from well-known environment variables, layered with host and
// process introspection, with an optional periodic refresh.
package runtimeinfo
