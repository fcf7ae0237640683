package runtimeinfo

import "time"

// Descriptor is the runtime metadata snapshot returned to the Supervisor for
// inclusion in create_execution/heartbeat payloads.
type Descriptor struct {
	// Container/orchestrator/serverless/CI identifiers are empty strings
	// when not detected.
	ContainerPlatform  string
	Orchestrator       string
	ServerlessPlatform string
	CI                 string

	Hostname         string
	OSPlatform       string
	PlatformVersion  string
	KernelVersion    string
	BootTime         time.Time
	TotalMemoryBytes uint64
	ProcessID        int

	// Extra carries any raw environment values worth surfacing alongside
	// the classified fields above (e.g. the specific CI provider's build
	// ID), keyed by a short name.
	Extra map[string]string
}

// Managed reports whether the process appears to be running under any
// recognized container, orchestrator, or serverless platform. The
// Supervisor reports it as the "managed" field of the runtime metadata
// map; no other decision depends on it.
func (d Descriptor) Managed() bool {
	return d.ContainerPlatform != "" || d.Orchestrator != "" || d.ServerlessPlatform != ""
}
