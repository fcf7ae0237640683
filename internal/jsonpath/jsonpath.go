package jsonpath

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

var indexRE = regexp.MustCompile(`\[(\d+)\]`)

// Extract applies path to value and returns the match (or matches),
// applying the list-collapsing rule.
//
// path "$" (or "") is the identity path and always returns value
// unchanged.
func Extract(value any, path string) (any, error) {
	if path == "" || path == "$" {
		return value, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: marshal value: %w", err)
	}

	gpath, wantsArray := translate(path)
	result := gjson.GetBytes(raw, gpath)
	if !result.Exists() {
		return nil, fmt.Errorf("jsonpath: no match for %q", path)
	}

	if result.IsArray() {
		arr := result.Array()
		out := make([]any, len(arr))
		for i, r := range arr {
			out[i] = r.Value()
		}
		if !wantsArray && len(out) == 1 {
			return out[0], nil
		}
		return out, nil
	}

	return result.Value(), nil
}

// translate converts the "$.foo.bar[*]" grammar to a gjson path, and
// reports whether the expression explicitly ended with "[*]" (in which
// case a matched array must never be collapsed, even if it has exactly
// one element).
func translate(path string) (string, bool) {
	p := strings.TrimPrefix(path, "$")
	p = strings.TrimPrefix(p, ".")

	wantsArray := false
	if strings.HasSuffix(p, "[*]") {
		wantsArray = true
		p = strings.TrimSuffix(p, "[*]")
		p = strings.TrimSuffix(p, ".")
	}

	p = indexRE.ReplaceAllString(p, ".$1")
	p = strings.TrimPrefix(p, ".")

	return p, wantsArray
}
