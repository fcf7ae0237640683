// Package secret resolves "[PROVIDER:]<address>[!FORMAT][|JP:<path>]"
// location strings to values: parse the location,
// fetch raw bytes through a pluggable per-provider Adapter, parse them
// with internal/valueparser, optionally narrow the result with
// internal/jsonpath, and cache the parsed value for a caller-supplied
// TTL so repeated lookups of the same secret within an invocation don't
// re-fetch until the cache entry expires.
package secret
