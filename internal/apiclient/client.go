package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/task"
)

// Phase names one of the four logical endpoints.
type Phase string

const (
	PhaseCreateExecution Phase = "create_execution"
	PhaseHeartbeat       Phase = "heartbeat"
	PhaseUpdate          Phase = "update"
	PhaseFinalize        Phase = "finalize"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string

	RequestTimeout time.Duration

	HeartbeatErrorTimeout time.Duration
	RetryDelay            time.Duration
	ResumeDelay           time.Duration // < 0: surface failure instead of pausing and resuming

	CreationErrorTimeout       time.Duration
	CreationConflictTimeout    time.Duration
	CreationConflictRetryDelay time.Duration

	FinalUpdateTimeout time.Duration

	OfflineMode             bool
	PreventOfflineExecution bool

	APIManagedProbability    float64
	FailureReportProbability float64
	TimeoutReportProbability float64
}

// Client issues create_execution/heartbeat/update/finalize calls against
// the Task Management service, each through the retry engine in retry.go.
type Client struct {
	opts           Options
	httpClient     *http.Client
	clock          clock.Clock
	sampler        *clock.Sampler
	requestTimeout time.Duration
	resumeDelay    time.Duration

	mu       sync.Mutex
	breakers map[Phase]*gobreaker.CircuitBreaker[rawAttempt]

	managedOnce sync.Once
	managed     bool
}

func New(opts Options, clk clock.Clock, sampler *clock.Sampler) *Client {
	return &Client{
		opts:           opts,
		httpClient:     &http.Client{},
		clock:          clk,
		sampler:        sampler,
		requestTimeout: opts.RequestTimeout,
		resumeDelay:    opts.ResumeDelay,
		breakers:       make(map[Phase]*gobreaker.CircuitBreaker[rawAttempt]),
	}
}

func (c *Client) breakerFor(phase Phase) *gobreaker.CircuitBreaker[rawAttempt] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[phase]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[rawAttempt](gobreaker.Settings{
		Name:        string(phase),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	c.breakers[phase] = cb
	return cb
}

func (c *Client) windowFor(phase Phase) window {
	switch phase {
	case PhaseCreateExecution:
		return window{
			errorTimeout:    c.opts.CreationErrorTimeout,
			retryDelay:      c.opts.RetryDelay,
			conflictTimeout: c.opts.CreationConflictTimeout,
			conflictDelay:   c.opts.CreationConflictRetryDelay,
		}
	case PhaseFinalize:
		return window{errorTimeout: c.opts.FinalUpdateTimeout, retryDelay: c.opts.RetryDelay}
	default:
		return window{errorTimeout: c.opts.HeartbeatErrorTimeout, retryDelay: c.opts.RetryDelay}
	}
}

// ShouldManage draws the sampling gate once per invocation and caches it.
func (c *Client) ShouldManage() bool {
	c.managedOnce.Do(func() {
		c.managed = c.sampler.Float64() < c.opts.APIManagedProbability
	})
	return c.managed
}

// ShouldLateReport re-samples the report-probability gate for an
// execution that was never registered but ended in failure or timeout.
func (c *Client) ShouldLateReport(timedOut bool) bool {
	p := c.opts.FailureReportProbability
	if timedOut {
		p = c.opts.TimeoutReportProbability
	}
	return c.sampler.Float64() < p
}

// CreateExecution registers a new execution. serverFlags is the decoded
// response body's free-form fields (e.g. marked_done/stop_requested
// hints returned at registration time).
func (c *Client) CreateExecution(ctx context.Context, identity task.Identity, metadata map[string]string, inputValue any) (execUUID string, serverFlags map[string]any, err error) {
	reqBody, err := json.Marshal(map[string]any{
		"identity":   identity,
		"metadata":   metadata,
		"input_value": inputValue,
	})
	if err != nil {
		return "", nil, fmt.Errorf("apiclient: encode create_execution request: %w", err)
	}

	body, err := c.runWithRetry(ctx, PhaseCreateExecution, c.windowFor(PhaseCreateExecution), true, func(ctx context.Context) (int, []byte, time.Duration, error) {
		return c.do(ctx, http.MethodPost, "/executions", reqBody)
	})
	if err != nil {
		return "", nil, err
	}

	var resp struct {
		ExecutionUUID string         `json:"execution_uuid"`
		ServerFlags   map[string]any `json:"server_flags"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nil, fmt.Errorf("apiclient: decode create_execution response: %w", err)
	}
	return resp.ExecutionUUID, resp.ServerFlags, nil
}

// HeartbeatResult reports whether the server wants the child stopped or
// has marked the execution done.
type HeartbeatResult struct {
	StopRequested bool
	MarkedDone    bool
}

func (c *Client) Heartbeat(ctx context.Context, execUUID string, counts task.Counts, lastStatusMessage string) (HeartbeatResult, error) {
	reqBody, err := json.Marshal(map[string]any{
		"counts":              counts,
		"last_status_message": lastStatusMessage,
	})
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("apiclient: encode heartbeat request: %w", err)
	}

	body, err := c.runWithRetry(ctx, PhaseHeartbeat, c.windowFor(PhaseHeartbeat), false, func(ctx context.Context) (int, []byte, time.Duration, error) {
		return c.do(ctx, http.MethodPost, "/executions/"+execUUID+"/heartbeat", reqBody)
	})
	if err != nil {
		return HeartbeatResult{}, err
	}

	var resp HeartbeatResult
	if err := json.Unmarshal(body, &resp); err != nil {
		return HeartbeatResult{}, fmt.Errorf("apiclient: decode heartbeat response: %w", err)
	}
	return resp, nil
}

// Update sends a partial update (counters, pid, hostname, runtime
// metadata, app-heartbeat timestamp).
func (c *Client) Update(ctx context.Context, execUUID string, patch map[string]any) error {
	reqBody, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("apiclient: encode update request: %w", err)
	}
	_, err = c.runWithRetry(ctx, PhaseUpdate, c.windowFor(PhaseUpdate), false, func(ctx context.Context) (int, []byte, time.Duration, error) {
		return c.do(ctx, http.MethodPatch, "/executions/"+execUUID, reqBody)
	})
	return err
}

// Finalize is the single terminal update for an execution; no further calls follow it for the same execution.
func (c *Client) Finalize(ctx context.Context, execUUID string, status task.Status, exitCode *int, resultValue any, logTail map[string][]string) error {
	reqBody, err := json.Marshal(map[string]any{
		"status":       status,
		"exit_code":    exitCode,
		"result_value": resultValue,
		"log_tail":     logTail,
	})
	if err != nil {
		return fmt.Errorf("apiclient: encode finalize request: %w", err)
	}
	_, err = c.runWithRetry(ctx, PhaseFinalize, c.windowFor(PhaseFinalize), false, func(ctx context.Context) (int, []byte, time.Duration, error) {
		return c.do(ctx, http.MethodPost, "/executions/"+execUUID+"/finalize", reqBody)
	})
	return err
}

// do issues one HTTP round trip and returns the status code, body, and
// any Retry-After duration, deferring retry/classification decisions to
// the caller.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, 0, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("apiclient: read response body: %w", err)
	}

	var retryAfter time.Duration
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	return resp.StatusCode, respBody, retryAfter, nil
}
