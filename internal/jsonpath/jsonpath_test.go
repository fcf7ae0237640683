package jsonpath

import (
	"reflect"
	"testing"
)

func TestExtractIdentityPath(t *testing.T) {
	t.Parallel()

	v := map[string]any{"a": 1}
	got, err := Extract(v, "$")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Errorf("got %#v, want %#v", got, v)
	}
}

func TestExtractSingleElementCollapses(t *testing.T) {
	t.Parallel()

	v := map[string]any{"v": float64(1)}
	got, err := Extract(v, "$.v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != float64(1) {
		t.Errorf("got %#v, want 1", got)
	}
}

func TestExtractListOfOneCollapsesWithoutStar(t *testing.T) {
	t.Parallel()

	v := map[string]any{"items": []any{"only"}}
	got, err := Extract(v, "$.items")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "only" {
		t.Errorf("got %#v, want \"only\"", got)
	}
}

func TestExtractListOfOneKeptWithStar(t *testing.T) {
	t.Parallel()

	v := map[string]any{"items": []any{"only"}}
	got, err := Extract(v, "$.items[*]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []any{"only"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestExtractListOfManyNeverCollapses(t *testing.T) {
	t.Parallel()

	v := map[string]any{"items": []any{"a", "b"}}
	got, err := Extract(v, "$.items")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []any{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestExtractNestedAndIndexed(t *testing.T) {
	t.Parallel()

	v := map[string]any{"db": map[string]any{"hosts": []any{"h1", "h2"}}}
	got, err := Extract(v, "$.db.hosts[0]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "h1" {
		t.Errorf("got %#v, want h1", got)
	}
}

func TestExtractNoMatchErrors(t *testing.T) {
	t.Parallel()

	v := map[string]any{"a": 1}
	if _, err := Extract(v, "$.missing"); err == nil {
		t.Fatal("expected error for missing path")
	}
}
