package configresolver

import (
	"fmt"

	"dario.cat/mergo"
)

// Strategy is one of the six supported config merge strategies.
type Strategy string

const (
	MergeShallow           Strategy = "SHALLOW"
	MergeDeep              Strategy = "DEEP"
	MergeReplace           Strategy = "REPLACE"
	MergeAdditive          Strategy = "ADDITIVE"
	MergeTypesafeReplace   Strategy = "TYPESAFE_REPLACE"
	MergeTypesafeAdditive  Strategy = "TYPESAFE_ADDITIVE"
)

// mergeInto merges src into dst according to strategy. Later locations take
// precedence over earlier ones at the leaf level, so src
// always wins on scalar collisions.
func mergeInto(dst map[string]any, src map[string]any, strategy Strategy) error {
	switch strategy {
	case MergeShallow:
		for k, v := range src {
			dst[k] = v
		}
		return nil

	case MergeDeep, MergeReplace:
		return mergo.Merge(&dst, src, mergo.WithOverride())

	case MergeAdditive:
		return mergo.Merge(&dst, src, mergo.WithOverride(), mergo.WithAppendSlice())

	case MergeTypesafeReplace:
		if err := checkTypesafe(dst, src); err != nil {
			return err
		}
		return mergo.Merge(&dst, src, mergo.WithOverride())

	case MergeTypesafeAdditive:
		if err := checkTypesafe(dst, src); err != nil {
			return err
		}
		return mergo.Merge(&dst, src, mergo.WithOverride(), mergo.WithAppendSlice())

	default:
		return fmt.Errorf("configresolver: unknown merge strategy %q", strategy)
	}
}

// checkTypesafe walks keys present in both dst and src and raises on a type
// mismatch at the same path.
func checkTypesafe(dst, src map[string]any) error {
	return checkTypesafePath(dst, src, "")
}

func checkTypesafePath(dst, src map[string]any, path string) error {
	for k, sv := range src {
		p := k
		if path != "" {
			p = path + "." + k
		}
		dv, ok := dst[k]
		if !ok || dv == nil || sv == nil {
			continue
		}
		dm, dIsMap := dv.(map[string]any)
		sm, sIsMap := sv.(map[string]any)
		if dIsMap && sIsMap {
			if err := checkTypesafePath(dm, sm, p); err != nil {
				return err
			}
			continue
		}
		if fmt.Sprintf("%T", dv) != fmt.Sprintf("%T", sv) {
			return fmt.Errorf("configresolver: type mismatch at %q: %T vs %T", p, dv, sv)
		}
	}
	return nil
}
