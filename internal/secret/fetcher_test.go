package secret

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/procsupervisor/internal/task"
	"github.com/tomtom215/procsupervisor/internal/valueparser"
)

// fakeClock lets tests advance time deterministically without sleeping.
type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time                        { return f.now }
func (f *fakeClock) NewTimer(d time.Duration) *time.Timer   { return time.NewTimer(d) }
func (f *fakeClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }
func (f *fakeClock) Since(t time.Time) time.Duration        { return f.now.Sub(t) }

// textCountingAdapter records how many times Fetch was called, always
// returning value as plain text.
type textCountingAdapter struct {
	calls int
	value string
}

func (c *textCountingAdapter) Fetch(_ context.Context, _ string) ([]byte, error) {
	c.calls++
	return []byte(c.value), nil
}

func (c *textCountingAdapter) DefaultFormat() valueparser.Format {
	return valueparser.FormatText
}

func TestFetcherCacheHitAvoidsRefetch(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	adapter := &textCountingAdapter{value: "secret-value"}
	reg := NewRegistry(nil)
	reg.Register(task.ProviderEnv, adapter)

	f, err := NewFetcher(reg, clk, time.Minute)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	for i := 0; i < 3; i++ {
		v, err := f.Resolve(context.Background(), "ENV:FOO", false)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if v != "secret-value" {
			t.Errorf("got %v", v)
		}
	}
	if adapter.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", adapter.calls)
	}
}

func TestFetcherTTLExpiryTriggersRefetch(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	adapter := &textCountingAdapter{value: "v1"}
	reg := NewRegistry(nil)
	reg.Register(task.ProviderEnv, adapter)

	f, err := NewFetcher(reg, clk, time.Second)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	if _, err := f.Resolve(context.Background(), "ENV:FOO", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := f.Resolve(context.Background(), "ENV:FOO", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected 1 fetch before expiry, got %d", adapter.calls)
	}

	clk.now = clk.now.Add(2 * time.Second)
	if _, err := f.Resolve(context.Background(), "ENV:FOO", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if adapter.calls != 2 {
		t.Errorf("expected 2 fetches after expiry, got %d", adapter.calls)
	}
}

func TestFetcherPlainProviderNeedsNoFetch(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	f, err := NewFetcher(NewRegistry(nil), clk, time.Minute)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	v, err := f.Resolve(context.Background(), "PLAIN:literal-value", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != "literal-value" {
		t.Errorf("got %v", v)
	}
}

func TestFetcherConfigProviderUsesLookup(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	lookup := func(path string) (any, bool) {
		if path == "$.db.user" {
			return "pg", true
		}
		return nil, false
	}
	f, err := NewFetcher(NewRegistry(lookup), clk, time.Minute)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	v, err := f.Resolve(context.Background(), "CONFIG:$.db.user", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != "pg" {
		t.Errorf("got %v", v)
	}
}

func TestFetcherJSONPathNarrowsParsedValue(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	lookup := func(path string) (any, bool) {
		if path == "$.doc" {
			return map[string]any{"db": map[string]any{"user": "pg"}}, true
		}
		return nil, false
	}
	f, err := NewFetcher(NewRegistry(lookup), clk, time.Minute)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	v, err := f.Resolve(context.Background(), "CONFIG:$.doc!json|JP:$.db.user", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != "pg" {
		t.Errorf("got %v", v)
	}
}

func TestFetcherUnregisteredProviderErrors(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	f, err := NewFetcher(NewRegistry(nil), clk, time.Minute)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer f.Close()

	if _, err := f.Resolve(context.Background(), "REMOTE_SECRET_STORE:prod/db", false); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}
