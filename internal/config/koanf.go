package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/procsupervisor/internal/validation"
)

// koanfDelim is the path separator used for every layer loaded into the
// shared koanf instance; it also matches the dotted "task.name" style
// koanf tags declared on Options.
const koanfDelim = "."

// Load builds the bootstrap Options by layering, in order, the struct
// defaults (DefaultOptions), then the process environment, then each
// non-empty overlay map in argument order, before the final Unmarshal.
// The caller builds those overlays (the CLI command tail, resolved
// config), since the argument parser itself is an external collaborator
// this package does not implement.
func Load(overlays ...map[string]any) (*Options, error) {
	k := koanf.New(koanfDelim)

	defaults := DefaultOptions()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if err := k.Load(envProvider(), nil); err != nil {
		return nil, fmt.Errorf("config: load environment overlay: %w", err)
	}

	for _, overlay := range overlays {
		if len(overlay) == 0 {
			continue
		}
		if err := k.Load(confmap.Provider(overlay, koanfDelim), nil); err != nil {
			return nil, fmt.Errorf("config: load overlay: %w", err)
		}
	}

	var opts Options
	if err := k.Unmarshal("", &opts); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &opts, nil
}

// Validate struct-validates opts and wraps any failure as a *ConfigError.
func Validate(opts *Options) error {
	if errs := validation.ValidateStruct(opts); errs != nil {
		return WrapConfigError(errs)
	}
	return nil
}

// ReloadFromResolved re-loads Options with cliOverlay (Supervisor passes
// its currently-effective options, projected by ToMap) and then the resolver's output
// config map as the highest-precedence layer: resolved configuration
// may re-specify supervisor settings, and those are read only after
// resolution. The resolver's own settings (Configuration) are deliberately excluded
// from resolvedConfig by the caller before this is invoked, so a resolved
// config value can never change the resolver's own behavior retroactively.
func ReloadFromResolved(cliOverlay map[string]any, resolvedConfig map[string]any) (*Options, error) {
	return Load(cliOverlay, resolvedConfig)
}

// ToMap projects an already-assembled Options back into the same nested
// map[string]any shape Load consumes, keyed by each field's koanf tag.
// Supervisor uses this to re-seed Load with the currently-effective
// options as the highest-precedence layer below the Config Resolver's own
// output (see ReloadFromResolved), since by the time resolution runs the
// original CLI overlay map itself is no longer in scope.
func ToMap(opts Options) (map[string]any, error) {
	k := koanf.New(koanfDelim)
	if err := k.Load(structs.Provider(opts, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: project options: %w", err)
	}
	return k.Raw(), nil
}
