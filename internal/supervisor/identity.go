package supervisor

import (
	"github.com/tomtom215/procsupervisor/internal/config"
	"github.com/tomtom215/procsupervisor/internal/task"
)

// buildIdentity projects the task.* namespace of Options onto a
// task.Identity, the shape the API Client and Execution bookkeeping work
// with.
func buildIdentity(opts config.TaskOptions) task.Identity {
	return task.Identity{
		Name: opts.Name,
		UUID: opts.UUID,
		Version: task.Version{
			Number:    opts.VersionNumber,
			Text:      opts.VersionText,
			Signature: opts.VersionSignature,
		},
		InstanceMetadata: opts.InstanceMetadata,
		IsService:        opts.IsService,
		IsPassive:        opts.IsPassive,
		MaxConcurrency:   opts.MaxConcurrency,
		Schedule:         opts.Schedule,
		MaxConflictingAge: opts.MaxConflictingAge,
	}
}
