package runtimeinfo

import (
	"context"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
)

// ChildStats is a point-in-time resource snapshot for a spawned child,
// attachable to heartbeat payloads alongside the host-level Descriptor.
type ChildStats struct {
	RSSBytes   uint64
	VMSBytes   uint64
	CPUPercent float64
}

// ProbeChild reads resource usage for the child at pid. A vanished
// process returns an error; callers sampling on a timer treat that as
// the child having exited between the reap and the tick.
func ProbeChild(ctx context.Context, pid int) (ChildStats, error) {
	proc, err := gopsprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ChildStats{}, err
	}

	var stats ChildStats
	if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		stats.RSSBytes = mi.RSS
		stats.VMSBytes = mi.VMS
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	return stats, nil
}
