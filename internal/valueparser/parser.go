package valueparser

import (
	"encoding/base64"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Format is one of the four supported raw-byte encodings.
type Format string

const (
	FormatDotenv Format = "dotenv"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatText   Format = "text"
)

// DetectFromExtension maps a filename extension or MIME subtype to a
// Format, returning ok=false when nothing recognized matches.
func DetectFromExtension(hint string) (Format, bool) {
	h := strings.ToLower(strings.TrimPrefix(hint, "."))
	switch h {
	case "env", "dotenv", "x-env":
		return FormatDotenv, true
	case "json", "application/json":
		return FormatJSON, true
	case "yaml", "yml", "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML, true
	case "txt", "text", "text/plain":
		return FormatText, true
	default:
		return "", false
	}
}

// Parse decodes raw into a structured value according to format. json and
// yaml may produce any combination of map[string]any, []any, and scalar
// types; dotenv always produces a map[string]string; text always produces
// a plain string.
//
// If parsing fails and asString is true (the caller wants a string-typed
// result, e.g. when projecting to an environment variable), the raw bytes
// are returned base64-encoded instead of failing.
func Parse(raw []byte, format Format, asString bool) (any, error) {
	v, err := parse(raw, format)
	if err != nil {
		if asString {
			return base64.StdEncoding.EncodeToString(raw), nil
		}
		return nil, err
	}
	return v, nil
}

func parse(raw []byte, format Format) (any, error) {
	switch format {
	case FormatText, "":
		return string(raw), nil
	case FormatDotenv:
		m, err := godotenv.Unmarshal(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse dotenv: %w", err)
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	case FormatJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return v, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return normalizeYAML(v), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// normalizeYAML converts the map[string]interface{} / map[interface{}]any
// shapes that gopkg.in/yaml.v3 produces for nested maps into
// map[string]any throughout, so downstream code (JSON-Path, merge, env
// projection) only ever has to handle one map type.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}

// SerializeDotenv round-trips a flat string map back to dotenv text.
func SerializeDotenv(m map[string]string) (string, error) {
	s, err := godotenv.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal dotenv: %w", err)
	}
	return s, nil
}

// SerializeJSON encodes a structured value back to JSON text, used when
// writing resolved config/env files.
func SerializeJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// SerializeYAML encodes a structured value back to YAML text.
func SerializeYAML(v any) ([]byte, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return b, nil
}
