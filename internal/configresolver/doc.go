// Package configresolver merges env-locations and config-locations into a
// flat environment map and a (possibly nested) config map, then walks the
// merged config for values that look like secret location strings and
// replaces them with the fetched value.
package configresolver
