package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/procsupervisor/internal/apiclient"
	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/config"
	"github.com/tomtom215/procsupervisor/internal/task"
)

func baseOptions(name string, commandLine []string) config.Options {
	opts := config.DefaultOptions()
	opts.Task.Name = name
	opts.API.OfflineMode = true
	opts.Process.CommandLine = commandLine
	opts.Process.RetryDelay = 10 * time.Millisecond
	opts.Process.CheckInterval = 10 * time.Millisecond
	opts.Process.TerminationGracePeriod = 50 * time.Millisecond
	return opts
}

func TestRunHappyPathOffline(t *testing.T) {
	t.Parallel()

	opts := baseOptions("t1", []string{"/bin/true"})
	sup, err := New(opts, Deps{Clock: clock.System{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	status, exitCode, _, err := sup.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusSucceeded {
		t.Errorf("got status %q, want %q", status, task.StatusSucceeded)
	}
	if exitCode != 0 {
		t.Errorf("got exit code %d, want 0", exitCode)
	}
}

func TestRunRetryExhaustionOffline(t *testing.T) {
	t.Parallel()

	opts := baseOptions("t1", []string{"/bin/false"})
	opts.Process.MaxRetries = 1
	sup, err := New(opts, Deps{Clock: clock.System{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	start := time.Now()
	status, exitCode, _, err := sup.Run(t.Context())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusFailed {
		t.Errorf("got status %q, want %q", status, task.StatusFailed)
	}
	if exitCode != 1 {
		t.Errorf("got exit code %d, want 1", exitCode)
	}
	if elapsed < opts.Process.RetryDelay {
		t.Errorf("retry delay not respected: elapsed %v < %v", elapsed, opts.Process.RetryDelay)
	}
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	opts := baseOptions("t1", []string{"sleep", "5"})
	opts.Process.Timeout = 150 * time.Millisecond
	opts.Log.NumLogLinesOnTimeout = 10
	sup, err := New(opts, Deps{Clock: clock.System{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	start := time.Now()
	status, exitCode, _, err := sup.Run(t.Context())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusTerminatedAfterTimeout {
		t.Errorf("got status %q, want %q", status, task.StatusTerminatedAfterTimeout)
	}
	if exitCode != ExitCodeTimeout {
		t.Errorf("got exit code %d, want %d", exitCode, ExitCodeTimeout)
	}
	if elapsed >= 5*time.Second {
		t.Errorf("child was not terminated before its own sleep completed: elapsed %v", elapsed)
	}
}

func TestRunCallbackSuccess(t *testing.T) {
	t.Parallel()

	opts := baseOptions("t1", nil)
	opts.IO.InputValue = `{"n": 2}`
	opts.IO.InputValueFormat = "json"

	var calls int32
	cb := func(ctx context.Context, input any) (any, error) {
		atomic.AddInt32(&calls, 1)
		m, ok := input.(map[string]any)
		if !ok {
			t.Errorf("callback input = %T, want map", input)
			return nil, nil
		}
		return m["n"], nil
	}

	sup, err := New(opts, Deps{Clock: clock.System{}, Callback: cb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	status, exitCode, result, err := sup.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusSucceeded {
		t.Errorf("got status %q, want %q", status, task.StatusSucceeded)
	}
	if exitCode != 0 {
		t.Errorf("got exit code %d, want 0", exitCode)
	}
	if result != float64(2) {
		t.Errorf("got result %v, want 2", result)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("callback invoked %d times, want 1", calls)
	}
}

func TestRunCallbackRetriesThenFails(t *testing.T) {
	t.Parallel()

	opts := baseOptions("t1", nil)
	opts.Process.MaxRetries = 2

	var calls int32
	cb := func(ctx context.Context, input any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("transform failed")
	}

	sup, err := New(opts, Deps{Clock: clock.System{}, Callback: cb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	status, exitCode, _, err := sup.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusFailed {
		t.Errorf("got status %q, want %q", status, task.StatusFailed)
	}
	if exitCode != 1 {
		t.Errorf("got exit code %d, want 1", exitCode)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("callback invoked %d times, want 3 (initial + 2 retries)", calls)
	}
}

func TestRunCallbackTimeout(t *testing.T) {
	t.Parallel()

	opts := baseOptions("t1", nil)
	opts.Process.Timeout = 50 * time.Millisecond

	cb := func(ctx context.Context, input any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	sup, err := New(opts, Deps{Clock: clock.System{}, Callback: cb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	status, exitCode, _, err := sup.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusTerminatedAfterTimeout {
		t.Errorf("got status %q, want %q", status, task.StatusTerminatedAfterTimeout)
	}
	if exitCode != ExitCodeTimeout {
		t.Errorf("got exit code %d, want %d", exitCode, ExitCodeTimeout)
	}
}

func TestRunOnlineConflictBackoff(t *testing.T) {
	t.Parallel()

	var attempts int32
	var finalizeBody atomic.Pointer[map[string]any]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/executions":
			if atomic.AddInt32(&attempts, 1) <= 2 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"execution_uuid":"abc-123","server_flags":{}}`)) //nolint:errcheck
		case r.Method == http.MethodPost && r.URL.Path == "/executions/abc-123/finalize":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				finalizeBody.Store(&body)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`)) //nolint:errcheck
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	opts := baseOptions("t1", []string{"/bin/true"})
	opts.API.OfflineMode = false
	opts.API.BaseURL = srv.URL
	opts.API.CreationConflictRetryDelay = 10 * time.Millisecond
	opts.API.CreationConflictTimeout = time.Second
	opts.API.HeartbeatInterval = 0

	apiClient := apiclient.New(apiOptionsFrom(opts.API), clock.System{}, clock.NewSeeded(1))
	sup, err := New(opts, Deps{Clock: clock.System{}, APIClient: apiClient})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.Close()

	status, exitCode, _, err := sup.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != task.StatusSucceeded {
		t.Errorf("got status %q, want %q", status, task.StatusSucceeded)
	}
	if exitCode != 0 {
		t.Errorf("got exit code %d, want 0", exitCode)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected registration to succeed on the third attempt, got %d attempts", attempts)
	}

	body := finalizeBody.Load()
	if body == nil {
		t.Fatal("no finalize call reached the server")
	}
	if (*body)["status"] != string(task.StatusSucceeded) {
		t.Errorf("finalized status = %v, want %q", (*body)["status"], task.StatusSucceeded)
	}
	// num_log_lines_sent_on_success defaults to zero: a successful run
	// attaches no tail.
	if tail, ok := (*body)["log_tail"]; ok && tail != nil {
		if m, isMap := tail.(map[string]any); !isMap || len(m) > 0 {
			t.Errorf("success finalize carried a log tail: %v", tail)
		}
	}
}
