package runtimeinfo

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Probe produces Descriptor snapshots and can refresh them periodically in
// the background.
type Probe struct {
	lookup EnvLookup

	mu   sync.RWMutex
	last Descriptor
}

// New builds a Probe using the real process environment. Pass a custom
// EnvLookup in tests to control detection deterministically.
func New(lookup EnvLookup) *Probe {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	p := &Probe{lookup: lookup}
	p.last = p.snapshot()
	return p
}

// Snapshot returns the most recently captured Descriptor without probing
// again.
func (p *Probe) Snapshot() Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Refresh re-probes the environment and host info, replacing the cached
// Descriptor.
func (p *Probe) Refresh() Descriptor {
	d := p.snapshot()
	p.mu.Lock()
	p.last = d
	p.mu.Unlock()
	return d
}

// snapshot builds a fresh Descriptor. Host/memory introspection errors are
// non-fatal: the corresponding fields are simply left zero-valued, since a
// probe failure should never block the child from starting.
func (p *Probe) snapshot() Descriptor {
	container, orchestrator, serverless, ci, extra := detectEnvironment(p.lookup)

	d := Descriptor{
		ContainerPlatform:  container,
		Orchestrator:       orchestrator,
		ServerlessPlatform: serverless,
		CI:                 ci,
		ProcessID:          os.Getpid(),
		Extra:              extra,
	}

	if info, err := host.Info(); err == nil {
		d.Hostname = info.Hostname
		d.OSPlatform = info.Platform
		d.PlatformVersion = info.PlatformVersion
		d.KernelVersion = info.KernelVersion
		d.BootTime = time.Unix(int64(info.BootTime), 0)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		d.TotalMemoryBytes = vm.Total
	}

	return d
}

// RunPeriodicRefresh refreshes the Descriptor every interval until ctx is
// canceled. Intended to run in its own goroutine under the supervisor tree.
func (p *Probe) RunPeriodicRefresh(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Refresh()
		}
	}
}
