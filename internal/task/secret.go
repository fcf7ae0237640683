package task

import "time"

// Provider identifies which backend a SecretLocation resolves against.
type Provider string

const (
	ProviderRemoteSecretStore    Provider = "REMOTE_SECRET_STORE"
	ProviderRemoteParameterStore Provider = "REMOTE_PARAMETER_STORE"
	ProviderRemoteAppConfig      Provider = "REMOTE_APP_CONFIG"
	ProviderRemoteBlob           Provider = "REMOTE_BLOB"
	ProviderFile                 Provider = "FILE"
	ProviderEnv                  Provider = "ENV"
	ProviderConfig               Provider = "CONFIG"
	ProviderPlain                Provider = "PLAIN"
)

// SecretLocation is the parsed form of the
// "[PROVIDER:]<address>[!FORMAT][|JP:<path>]" grammar.
type SecretLocation struct {
	// Raw is the original, unparsed location string, quoted in error
	// messages. It is not a cache key: the Secret Fetcher caches by
	// provider, address and format.
	Raw string

	Provider Provider
	Address  string

	// Format is the explicit "!FORMAT" suffix, or empty if auto-detection
	// should be used.
	Format string

	// JSONPath is the "|JP:<path>" suffix, or empty if the whole parsed
	// value should be returned.
	JSONPath string
}

// FetchKey identifies the raw-bytes fetch for caching purposes: two
// locations that differ only in format or JSON path share one fetch key.
type FetchKey struct {
	Provider Provider
	Address  string
}

// ParseKey additionally distinguishes the format used to parse the fetched
// bytes, since the same raw bytes may be parsed two different ways.
type ParseKey struct {
	FetchKey
	Format string
}

// CachedSecret is a fetched-and-parsed secret value together with the time
// it was fetched, so TTL expiry can be evaluated against a supplied clock.
type CachedSecret struct {
	Value     any
	FetchedAt time.Time
	Format    string
}

// Expired reports whether the cached value's age exceeds ttl as of 'now'.
// A non-positive ttl never expires.
func (c CachedSecret) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.FetchedAt) >= ttl
}
