package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/procsupervisor/internal/valueparser"
)

// writeVariablesFile serializes vars (an env map or a config map) to path
// in format, auto-selecting the format from path's extension when format
// is empty (a supplemented feature beyond the base config/env write:
// "config/env file format auto-selection on write", matching the same
// extension table the Config Resolver already uses for reads).
func writeVariablesFile(path, format string, vars any) error {
	f := format
	if f == "" {
		if detected, ok := valueparser.DetectFromExtension(filepath.Ext(path)); ok {
			f = string(detected)
		} else {
			f = "json"
		}
	}

	var out []byte
	var err error
	switch f {
	case "dotenv":
		m, ok := vars.(map[string]string)
		if !ok {
			return fmt.Errorf("supervisor: dotenv output requires a flat string map")
		}
		s, serr := valueparser.SerializeDotenv(m)
		if serr != nil {
			return serr
		}
		out = []byte(s)
	case "yaml":
		out, err = valueparser.SerializeYAML(vars)
	default:
		out, err = valueparser.SerializeJSON(vars)
	}
	if err != nil {
		return err
	}

	if werr := os.WriteFile(path, out, 0o600); werr != nil {
		return fmt.Errorf("supervisor: write %s: %w", path, werr)
	}
	return nil
}
