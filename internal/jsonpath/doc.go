// Package jsonpath applies a path expression to a structured value, with
// a list-collapsing rule: if the expression does not end with "[*]" and
// the result is a single-element list, the single element is returned
// rather than the list.
//
// Paths use the "$.foo.bar[*]" grammar. Internally
// they are translated to github.com/tidwall/gjson's dotted/"#" path
// syntax and evaluated against a re-encoded JSON representation of the
// input value, so the extractor works uniformly whether the value
// originated from JSON, YAML, or a CONFIG-provider lookup.
package jsonpath
