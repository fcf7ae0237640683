package secret

import (
	"fmt"
	"strings"

	"github.com/tomtom215/procsupervisor/internal/task"
)

// explicitPrefixes maps the literal "PROVIDER:" token a caller may write
// to its Provider. Only these eight enum names are recognized; anything
// else before a colon is treated as part of the address (e.g. a Windows
// drive letter or an ARN is never mistaken for an explicit prefix).
var explicitPrefixes = map[string]task.Provider{
	"REMOTE_SECRET_STORE":    task.ProviderRemoteSecretStore,
	"REMOTE_PARAMETER_STORE": task.ProviderRemoteParameterStore,
	"REMOTE_APP_CONFIG":      task.ProviderRemoteAppConfig,
	"REMOTE_BLOB":            task.ProviderRemoteBlob,
	"FILE":                   task.ProviderFile,
	"ENV":                    task.ProviderEnv,
	"CONFIG":                 task.ProviderConfig,
	"PLAIN":                  task.ProviderPlain,
}

// ParseLocation parses the "[PROVIDER:]<address>[!FORMAT][|JP:<path>]"
// grammar.
func ParseLocation(raw string) (task.SecretLocation, error) {
	loc := task.SecretLocation{Raw: raw}
	rest := raw

	if idx := strings.Index(rest, "|JP:"); idx >= 0 {
		loc.JSONPath = rest[idx+len("|JP:"):]
		rest = rest[:idx]
	}

	if idx := strings.LastIndex(rest, "!"); idx >= 0 {
		loc.Format = rest[idx+1:]
		rest = rest[:idx]
	}

	provider, address := splitProvider(rest)
	if address == "" {
		return task.SecretLocation{}, fmt.Errorf("secret location %q: empty address", raw)
	}

	loc.Provider = provider
	loc.Address = address
	return loc, nil
}

// splitProvider resolves the provider: an explicit "PROVIDER:" prefix
// wins; otherwise the address is auto-detected by shape; otherwise it
// defaults to FILE.
func splitProvider(s string) (task.Provider, string) {
	if idx := strings.Index(s, ":"); idx >= 0 {
		if p, ok := explicitPrefixes[s[:idx]]; ok {
			addr := s[idx+1:]
			if p == task.ProviderFile {
				addr = strings.TrimPrefix(addr, "//")
			}
			return p, addr
		}
	}

	switch {
	case strings.HasPrefix(s, "file://"):
		return task.ProviderFile, strings.TrimPrefix(s, "file://")
	case strings.Contains(s, ":secretsmanager:"):
		return task.ProviderRemoteSecretStore, s
	case strings.HasPrefix(s, "ssm:") || strings.Contains(s, ":ssm:"):
		return task.ProviderRemoteParameterStore, s
	case strings.Contains(s, ":appconfig:"):
		return task.ProviderRemoteAppConfig, s
	case strings.Contains(s, ":s3:::"):
		return task.ProviderRemoteBlob, s
	default:
		return task.ProviderFile, s
	}
}
