package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// resetLogger restores the default configuration after a test that
// called Init or SetLogger.
func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { Init(DefaultConfig()) })
}

func TestInitJSONOutput(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamps: true, Output: &buf})

	Info().Str("task_name", "nightly-etl").Int("exit_code", 0).Msg("invocation finished")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, buf.String())
	}
	if event["level"] != "info" {
		t.Errorf("level = %v, want info", event["level"])
	}
	if event["task_name"] != "nightly-etl" {
		t.Errorf("task_name = %v, want nightly-etl", event["task_name"])
	}
	if event["message"] != "invocation finished" {
		t.Errorf("message = %v", event["message"])
	}
	if _, ok := event["time"]; !ok {
		t.Error("timestamps enabled but no time field emitted")
	}
}

func TestInitTimestampsDisabled(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf, Timestamps: false})

	Info().Msg("starting process supervisor")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if _, ok := event["time"]; ok {
		t.Error("include_timestamps off but time field emitted")
	}
}

func TestInitConsoleFormat(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf})

	Info().Str("status", "SUCCEEDED").Msg("child exited")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console format produced JSON: %s", out)
	}
	if !strings.Contains(out, "child exited") {
		t.Errorf("message missing from console output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})

	Debug().Msg("spawn details")
	Info().Msg("heartbeat sent")
	Warn().Msg("heartbeat failed")

	lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
	if buf.Len() == 0 {
		t.Fatal("warn-level event was filtered out")
	}
	if lines != 1 {
		t.Errorf("got %d events, want only the warn one:\n%s", lines, buf.String())
	}
	if !strings.Contains(buf.String(), "heartbeat failed") {
		t.Errorf("unexpected surviving event: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	resetLogger(t)

	SetLevelString("error")
	if got := GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("GetLevel() = %v after SetLevelString(error)", got)
	}
}

func TestSecretValueRedaction(t *testing.T) {
	resetLogger(t)

	Init(Config{Level: "info", Output: &bytes.Buffer{}, LogSecrets: false})
	if got := SecretValue("hunter2"); got != "[redacted]" {
		t.Errorf("SecretValue with log_secrets off = %q", got)
	}
	if SecretsLoggable() {
		t.Error("SecretsLoggable() = true with log_secrets off")
	}

	Init(Config{Level: "info", Output: &bytes.Buffer{}, LogSecrets: true})
	if got := SecretValue("hunter2"); got != "hunter2" {
		t.Errorf("SecretValue with log_secrets on = %q", got)
	}
	if !SecretsLoggable() {
		t.Error("SecretsLoggable() = false with log_secrets on")
	}
}

func TestSetLoggerAndWith(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	hb := With().Str("component", "heartbeat").Logger()
	hb.Info().Msg("tick")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if event["component"] != "heartbeat" {
		t.Errorf("component = %v, want heartbeat", event["component"])
	}
}
