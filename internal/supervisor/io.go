package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/procsupervisor/internal/config"
	"github.com/tomtom215/procsupervisor/internal/logging"
	"github.com/tomtom215/procsupervisor/internal/valueparser"
)

// resolveInputValue loads and parses the child's input value: a filename takes precedence over an inline
// value, and the format is explicit, then extension-detected, then text.
func resolveInputValue(opts config.IOOptions) (any, error) {
	switch {
	case opts.InputFilename != "":
		raw, err := os.ReadFile(opts.InputFilename)
		if err != nil {
			return nil, fmt.Errorf("supervisor: read input file %s: %w", opts.InputFilename, err)
		}
		format := resolveFormat(opts.InputValueFormat, opts.InputFilename)
		v, err := valueparser.Parse(raw, format, false)
		if err != nil {
			return nil, fmt.Errorf("supervisor: parse input file %s: %w", opts.InputFilename, err)
		}
		return v, nil
	case opts.InputValue != "":
		format := resolveFormat(opts.InputValueFormat, "")
		v, err := valueparser.Parse([]byte(opts.InputValue), format, false)
		if err != nil {
			return nil, fmt.Errorf("supervisor: parse input value: %w", err)
		}
		return v, nil
	default:
		return nil, nil
	}
}

// resolveFormat applies explicit-format-wins-over-extension-detection,
// defaulting to text.
func resolveFormat(explicit, hint string) valueparser.Format {
	if explicit != "" {
		return valueparser.Format(explicit)
	}
	if hint != "" {
		if f, ok := valueparser.DetectFromExtension(filepath.Ext(hint)); ok {
			return f
		}
	}
	return valueparser.FormatText
}

// projectInputEnv turns the resolved input value into the string form
// exported to the child's environment under InputEnvVarName, when
// configured.
func projectInputEnv(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		b, err := valueparser.SerializeJSON(t)
		if err != nil {
			return "", fmt.Errorf("supervisor: project input value to environment: %w", err)
		}
		return string(b), nil
	}
}

// readResultValue reads and parses the child's result file after it exits
//, returning (nil, nil) when no result
// filename is configured or the file was never written.
func readResultValue(opts config.IOOptions) (any, error) {
	if opts.ResultFilename == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(opts.ResultFilename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("supervisor: read result file %s: %w", opts.ResultFilename, err)
	}
	format := resolveFormat(opts.ResultValueFormat, opts.ResultFilename)
	v, err := valueparser.Parse(raw, format, false)
	if err != nil {
		return nil, fmt.Errorf("supervisor: parse result file %s: %w", opts.ResultFilename, err)
	}
	return v, nil
}

// cleanupFile removes path, ignoring a not-exist error since cleanup is
// best-effort housekeeping, not a correctness requirement.
func cleanupFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("supervisor: cleanup failed")
	}
}
