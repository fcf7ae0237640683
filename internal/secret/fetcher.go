package secret

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/jsonpath"
	"github.com/tomtom215/procsupervisor/internal/task"
	"github.com/tomtom215/procsupervisor/internal/valueparser"
)

// Fetcher resolves secret location strings to values, caching the
// parsed-but-not-path-extracted result per (provider, address, format)
// for ttl.
type Fetcher struct {
	registry *Registry
	cache    *ristretto.Cache[string, task.CachedSecret]
	clock    clock.Clock
	ttl      time.Duration
}

// NewFetcher builds a Fetcher. ttl <= 0 disables caching entirely (every
// resolution re-fetches).
func NewFetcher(registry *Registry, clk clock.Clock, ttl time.Duration) (*Fetcher, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, task.CachedSecret]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("secret: build cache: %w", err)
	}
	return &Fetcher{registry: registry, cache: cache, clock: clk, ttl: ttl}, nil
}

// Close releases the cache's background goroutines.
func (f *Fetcher) Close() {
	f.cache.Close()
}

// Resolve parses raw as a secret location, fetches and parses the value
// (from cache when the TTL has not elapsed), and applies any "|JP:"
// JSON-Path suffix. asString requests the base64-binary-fallback
// behavior described in valueparser.Parse, for callers projecting the
// result straight into an environment variable.
func (f *Fetcher) Resolve(ctx context.Context, raw string, asString bool) (any, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	return f.ResolveParsed(ctx, loc, "", asString)
}

// ResolveParsed is the same as Resolve, but takes an already-parsed
// location and an optional fallbackFormat used in place of the provider
// adapter's own default when loc carries no explicit "!FORMAT" and its
// address has no recognized extension. Callers that know the
// location-kind's default format (dotenv for env-locations, json for
// config-locations) pass it here.
func (f *Fetcher) ResolveParsed(ctx context.Context, loc task.SecretLocation, fallbackFormat valueparser.Format, asString bool) (any, error) {
	adapter, err := f.registry.lookup(loc.Provider)
	if err != nil {
		return nil, err
	}

	format := f.resolveFormat(loc, adapter)
	if loc.Format == "" && fallbackFormat != "" && !hasRecognizedExtension(loc.Address) {
		format = fallbackFormat
	}
	cacheKey := string(loc.Provider) + "|" + loc.Address + "|" + string(format)

	value, err := f.parsedValue(ctx, cacheKey, loc, adapter, format, asString)
	if err != nil {
		return nil, err
	}

	if loc.JSONPath == "" {
		return value, nil
	}
	extracted, err := jsonpath.Extract(value, loc.JSONPath)
	if err != nil {
		return nil, fmt.Errorf("secret: %s: %w", loc.Raw, err)
	}
	return extracted, nil
}

func (f *Fetcher) parsedValue(ctx context.Context, cacheKey string, loc task.SecretLocation, adapter Adapter, format valueparser.Format, asString bool) (any, error) {
	now := f.clock.Now()

	if f.ttl > 0 {
		if cached, ok := f.cache.Get(cacheKey); ok && !cached.Expired(now, f.ttl) {
			return cached.Value, nil
		}
	}

	raw, err := adapter.Fetch(ctx, loc.Address)
	if err != nil {
		return nil, fmt.Errorf("secret: fetch %s:%s: %w", loc.Provider, loc.Address, err)
	}
	value, err := valueparser.Parse(raw, format, asString)
	if err != nil {
		return nil, fmt.Errorf("secret: parse %s:%s as %s: %w", loc.Provider, loc.Address, format, err)
	}

	if f.ttl > 0 {
		f.cache.SetWithTTL(cacheKey, task.CachedSecret{Value: value, FetchedAt: now, Format: string(format)}, 1, f.ttl)
		f.cache.Wait()
	}
	return value, nil
}

// resolveFormat applies the format precedence: an explicit "!FORMAT"
// suffix wins, then auto-detection from the address's file extension,
// then the provider adapter's own default.
func (f *Fetcher) resolveFormat(loc task.SecretLocation, adapter Adapter) valueparser.Format {
	if loc.Format != "" {
		return valueparser.Format(loc.Format)
	}
	if ext := filepath.Ext(loc.Address); ext != "" {
		if fmtFromExt, ok := valueparser.DetectFromExtension(ext); ok {
			return fmtFromExt
		}
	}
	return adapter.DefaultFormat()
}

func hasRecognizedExtension(address string) bool {
	ext := filepath.Ext(address)
	if ext == "" {
		return false
	}
	_, ok := valueparser.DetectFromExtension(ext)
	return ok
}
