package configresolver

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// projectEnvValue converts an arbitrary resolved value to the flat string
// form required for a child process environment:
// list/map → JSON-encoded string; boolean → TRUE/FALSE; nil → empty
// string; everything else → its canonical textual form.
func projectEnvValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("configresolver: project env value: %w", err)
		}
		return string(b), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}
