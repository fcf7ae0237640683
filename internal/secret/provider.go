package secret

import (
	"context"
	"fmt"
	"os"

	"github.com/tomtom215/procsupervisor/internal/task"
	"github.com/tomtom215/procsupervisor/internal/valueparser"
)

// Adapter is the small capability interface every provider implements:
// turn an address into raw bytes plus a default format to fall back on
// when the location string carries no explicit "!FORMAT".
type Adapter interface {
	Fetch(ctx context.Context, address string) ([]byte, error)
	DefaultFormat() valueparser.Format
}

// ConfigLookup resolves a CONFIG: address (a JSON path) to a value. It is
// supplied by whoever builds the Registry; the Supervisor passes one that
// reads a projection of its current Options, so the env and config
// documents being resolved are not visible through it. The secret package
// has no knowledge of its shape.
type ConfigLookup func(path string) (any, bool)

// Registry is an explicit map of Provider to Adapter populated at
// construction time, in place of reflection-based auto-registration.
type Registry struct {
	adapters map[task.Provider]Adapter
}

// NewRegistry builds the default registry. REMOTE_SECRET_STORE,
// REMOTE_PARAMETER_STORE, REMOTE_APP_CONFIG, and REMOTE_BLOB have no
// adapter registered by default — they require a concrete cloud SDK the
// core module does not depend on — and resolve with a "no adapter
// registered" error until the caller registers one via Register.
func NewRegistry(lookup ConfigLookup) *Registry {
	r := &Registry{adapters: make(map[task.Provider]Adapter, 8)}
	r.Register(task.ProviderFile, fileAdapter{})
	r.Register(task.ProviderEnv, envAdapter{})
	r.Register(task.ProviderPlain, plainAdapter{})
	r.Register(task.ProviderConfig, configAdapter{lookup: lookup})
	return r
}

// Register installs or replaces the adapter for a provider. Callers that
// need REMOTE_SECRET_STORE/REMOTE_PARAMETER_STORE/REMOTE_APP_CONFIG/
// REMOTE_BLOB support register an adapter backed by the relevant cloud
// SDK at startup.
func (r *Registry) Register(p task.Provider, a Adapter) {
	r.adapters[p] = a
}

func (r *Registry) lookup(p task.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("secret: no adapter registered for provider %s", p)
	}
	return a, nil
}

// fileAdapter reads a local filesystem path.
type fileAdapter struct{}

func (fileAdapter) Fetch(_ context.Context, address string) ([]byte, error) {
	b, err := os.ReadFile(address)
	if err != nil {
		return nil, fmt.Errorf("secret: read file %s: %w", address, err)
	}
	return b, nil
}

func (fileAdapter) DefaultFormat() valueparser.Format {
	return valueparser.FormatText
}

// envAdapter reads a process environment variable.
type envAdapter struct{}

func (envAdapter) Fetch(_ context.Context, address string) ([]byte, error) {
	v, ok := os.LookupEnv(address)
	if !ok {
		return nil, fmt.Errorf("secret: environment variable %s not set", address)
	}
	return []byte(v), nil
}

func (envAdapter) DefaultFormat() valueparser.Format {
	return valueparser.FormatText
}

// plainAdapter treats the address itself as the literal value, for
// inline secrets that need no fetch at all.
type plainAdapter struct{}

func (plainAdapter) Fetch(_ context.Context, address string) ([]byte, error) {
	return []byte(address), nil
}

func (plainAdapter) DefaultFormat() valueparser.Format {
	return valueparser.FormatText
}

// configAdapter resolves a JSON path through the Registry's ConfigLookup.
type configAdapter struct {
	lookup ConfigLookup
}

func (c configAdapter) Fetch(_ context.Context, address string) ([]byte, error) {
	if c.lookup == nil {
		return nil, fmt.Errorf("secret: CONFIG provider has no lookup configured")
	}
	v, ok := c.lookup(address)
	if !ok {
		return nil, fmt.Errorf("secret: no config value at path %s", address)
	}
	// Every value, strings included, is JSON-encoded so the bytes match
	// DefaultFormat; an explicit non-JSON "!FORMAT" sees that encoding.
	b, err := valueparser.SerializeJSON(v)
	if err != nil {
		return nil, fmt.Errorf("secret: serialize config value at %s: %w", address, err)
	}
	return b, nil
}

func (configAdapter) DefaultFormat() valueparser.Format {
	return valueparser.FormatJSON
}
