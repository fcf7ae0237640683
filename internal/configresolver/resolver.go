package configresolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/procsupervisor/internal/secret"
	"github.com/tomtom215/procsupervisor/internal/valueparser"
)

// MarkerConfig names the resolvable-key prefix/suffix pair for one of the
// two documents (env or config). A key matches if it carries the prefix,
// the suffix, or both; whichever matched is stripped from the output key.
type MarkerConfig struct {
	Prefix string
	Suffix string
}

func (m MarkerConfig) match(key string) (stripped string, ok bool) {
	s := key
	matched := false
	if m.Prefix != "" && strings.HasPrefix(s, m.Prefix) {
		s = strings.TrimPrefix(s, m.Prefix)
		matched = true
	}
	if m.Suffix != "" && strings.HasSuffix(s, m.Suffix) {
		s = strings.TrimSuffix(s, m.Suffix)
		matched = true
	}
	return s, matched
}

// DefaultEnvMarker and DefaultConfigMarker are the default resolvable-key
// suffixes.
var (
	DefaultEnvMarker    = MarkerConfig{Suffix: "_FOR_PROC_WRAPPER_TO_RESOLVE"}
	DefaultConfigMarker = MarkerConfig{Suffix: "__to_resolve"}
)

// Options configures one Resolve call.
type Options struct {
	EnvLocations    []string
	ConfigLocations []string

	MergeStrategy Strategy

	EnvMarker    MarkerConfig
	ConfigMarker MarkerConfig

	MaxConfigResolutionDepth      int
	MaxConfigResolutionIterations int

	FailFastConfigResolution bool

	// EnvVarNameForConfig, if set, exposes the resolved config document
	// (JSON-encoded) under this key in the output env map.
	EnvVarNameForConfig string
	// ConfigPropertyNameForEnv, if set, exposes the resolved env map
	// under this key in the output config map.
	ConfigPropertyNameForEnv string
}

// Resolver merges env/config locations and resolves secret references
// within the merged config.
type Resolver struct {
	fetcher *secret.Fetcher
}

func NewResolver(fetcher *secret.Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Result is the output of one Resolve call: a flat environment map and a
// possibly-nested config map.
type Result struct {
	Env    map[string]string
	Config map[string]any

	// Warnings holds resolution errors that were retained (not raised)
	// because FailFastConfigResolution was false.
	Warnings []error
}

// Resolve fetches and merges each location, then iteratively resolves
// secret-location values nested in the config, then applies the same
// pass to the flat env map at depth 1.
func (r *Resolver) Resolve(ctx context.Context, initial map[string]any, opts Options) (*Result, error) {
	res := &Result{Env: map[string]string{}, Config: map[string]any{}}
	for k, v := range initial {
		res.Config[k] = v
	}

	for _, loc := range opts.EnvLocations {
		doc, err := r.fetchDocument(ctx, loc, valueparser.FormatDotenv)
		if err != nil {
			return nil, fmt.Errorf("configresolver: env-location %s: %w", loc, err)
		}
		envDoc, err := toStringMap(doc)
		if err != nil {
			return nil, fmt.Errorf("configresolver: env-location %s: %w", loc, err)
		}
		// env is flat, so every merge strategy degenerates to later-wins
		// overwrite at the top level; the strategy only matters for the
		// nested config document below.
		for k, v := range envDoc {
			res.Env[k] = v
		}
	}

	for _, loc := range opts.ConfigLocations {
		doc, err := r.fetchDocument(ctx, loc, valueparser.FormatJSON)
		if err != nil {
			return nil, fmt.Errorf("configresolver: config-location %s: %w", loc, err)
		}
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("configresolver: config-location %s: top-level value is not a mapping", loc)
		}
		if err := mergeInto(res.Config, m, opts.MergeStrategy); err != nil {
			return nil, fmt.Errorf("configresolver: merge config-location %s: %w", loc, err)
		}
	}

	maxIter := opts.MaxConfigResolutionIterations
	if maxIter <= 0 {
		maxIter = 1
	}
	for i := 0; i < maxIter; i++ {
		changed, err := r.resolvePass(ctx, res.Config, opts.ConfigMarker, 0, opts.MaxConfigResolutionDepth, opts.FailFastConfigResolution, res)
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}
	}

	if err := r.resolveEnvPass(ctx, res.Env, opts.EnvMarker, opts.FailFastConfigResolution, res); err != nil {
		return nil, err
	}

	if opts.EnvVarNameForConfig != "" {
		encoded, err := projectEnvValue(res.Config)
		if err != nil {
			return nil, fmt.Errorf("configresolver: project config for %s: %w", opts.EnvVarNameForConfig, err)
		}
		res.Env[opts.EnvVarNameForConfig] = encoded
	}
	if opts.ConfigPropertyNameForEnv != "" {
		envAsAny := make(map[string]any, len(res.Env))
		for k, v := range res.Env {
			envAsAny[k] = v
		}
		res.Config[opts.ConfigPropertyNameForEnv] = envAsAny
	}

	return res, nil
}

// fetchDocument fetches a whole-document location string (an env-location
// or config-location), defaulting its format by location kind.
func (r *Resolver) fetchDocument(ctx context.Context, raw string, fallbackFormat valueparser.Format) (any, error) {
	loc, err := secret.ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	return r.fetcher.ResolveParsed(ctx, loc, fallbackFormat, false)
}

// resolvePass performs one resolution pass over cfg, mutating it in
// place, and reports whether anything changed.
func (r *Resolver) resolvePass(ctx context.Context, cfg map[string]any, marker MarkerConfig, depth, maxDepth int, failFast bool, res *Result) (bool, error) {
	changed := false
	for k, v := range cfg {
		if stripped, ok := marker.match(k); ok {
			s, isString := v.(string)
			if !isString {
				continue
			}
			resolved, err := r.resolveSecretString(ctx, s)
			if err != nil {
				if failFast {
					return false, fmt.Errorf("configresolver: resolve %s: %w", k, err)
				}
				res.Warnings = append(res.Warnings, fmt.Errorf("configresolver: resolve %s: %w", k, err))
				continue
			}
			delete(cfg, k)
			cfg[stripped] = resolved
			changed = true
			continue
		}
		if depth >= maxDepth {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			nestedChanged, err := r.resolvePass(ctx, nested, marker, depth+1, maxDepth, failFast, res)
			if err != nil {
				return false, err
			}
			changed = changed || nestedChanged
		}
	}
	return changed, nil
}

// resolveEnvPass applies the same resolution to the flat env map, at
// depth 1 only, projecting each resolved value to
// its environment string form.
func (r *Resolver) resolveEnvPass(ctx context.Context, env map[string]string, marker MarkerConfig, failFast bool, res *Result) error {
	for k, v := range env {
		stripped, ok := marker.match(k)
		if !ok {
			continue
		}
		resolved, err := r.resolveSecretString(ctx, v)
		if err != nil {
			if failFast {
				return fmt.Errorf("configresolver: resolve %s: %w", k, err)
			}
			res.Warnings = append(res.Warnings, fmt.Errorf("configresolver: resolve %s: %w", k, err))
			continue
		}
		projected, err := projectEnvValue(resolved)
		if err != nil {
			return fmt.Errorf("configresolver: project %s: %w", k, err)
		}
		delete(env, k)
		env[stripped] = projected
	}
	return nil
}

func (r *Resolver) resolveSecretString(ctx context.Context, raw string) (any, error) {
	return r.fetcher.Resolve(ctx, raw, false)
}

func toStringMap(v any) (map[string]string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is not a mapping")
	}
	out := make(map[string]string, len(m))
	for k, vv := range m {
		s, err := projectEnvValue(vv)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

