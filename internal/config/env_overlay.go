package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
)

// envPrefix is the common prefix for every environment variable this
// process reads.
const envPrefix = "SUPERVISOR_"

// envConverters maps a full "SUPERVISOR_..." environment variable name to
// the dotted koanf path it overlays and the typed conversion its raw
// string value needs, since every Options leaf is typed (time.Duration,
// int, []string, ...) rather than koanf's default all-strings env
// reading.
var envConverters = buildEnvConverters()

type envConverter func(raw string) (value any, ok bool)

func buildEnvConverters() map[string]struct {
	path string
	conv envConverter
} {
	entries := map[string]struct {
		path string
		conv envConverter
	}{}

	add := func(name, path string, conv envConverter) {
		entries[envPrefix+name] = struct {
			path string
			conv envConverter
		}{path: path, conv: conv}
	}

	for _, e := range []envEntry{
		{"TASK_NAME", "task.name"},
		{"TASK_UUID", "task.uuid"},
		{"TASK_VERSION_TEXT", "task.version_text"},
		{"TASK_VERSION_SIGNATURE", "task.version_signature"},
		{"TASK_SCHEDULE", "task.schedule"},
		{"API_BASE_URL", "api.base_url"},
		{"API_KEY", "api.api_key"},
		{"PROCESS_WORK_DIR", "process.work_dir"},
		{"PROCESS_SHELL_MODE", "process.shell_mode"},
		{"IO_INPUT_VALUE", "io.input_value"},
		{"IO_INPUT_ENV_VAR_NAME", "io.input_env_var_name"},
		{"IO_INPUT_FILENAME", "io.input_filename"},
		{"IO_INPUT_VALUE_FORMAT", "io.input_value_format"},
		{"IO_RESULT_FILENAME", "io.result_filename"},
		{"IO_RESULT_VALUE_FORMAT", "io.result_value_format"},
		{"LOG_LEVEL", "log.level"},
		{"CONFIG_MERGE_STRATEGY", "configuration.config_merge_strategy"},
		{"CONFIG_RESOLVED_ENV_PREFIX", "configuration.resolved_env_var_name_prefix"},
		{"CONFIG_RESOLVED_ENV_SUFFIX", "configuration.resolved_env_var_name_suffix"},
		{"CONFIG_RESOLVED_CONFIG_PREFIX", "configuration.resolved_config_property_name_prefix"},
		{"CONFIG_RESOLVED_CONFIG_SUFFIX", "configuration.resolved_config_property_name_suffix"},
		{"CONFIG_ENV_VAR_FOR_CONFIG", "configuration.env_var_name_for_config"},
		{"CONFIG_PROPERTY_FOR_ENV", "configuration.config_property_name_for_env"},
		{"CONFIG_ENV_OUTPUT_FILENAME", "configuration.env_output_filename"},
		{"CONFIG_ENV_OUTPUT_FORMAT", "configuration.env_output_format"},
		{"CONFIG_CONFIG_OUTPUT_FILENAME", "configuration.config_output_filename"},
		{"CONFIG_CONFIG_OUTPUT_FORMAT", "configuration.config_output_format"},
	} {
		add(e.env, e.path, stringConverter)
	}

	for _, e := range []envEntry{
		{"TASK_MAX_CONCURRENCY", "task.max_concurrency"},
		{"TASK_MAX_CONFLICTING_AGE", "task.max_conflicting_age"},
		{"PROCESS_MAX_RETRIES", "process.max_retries"},
		{"LOG_NUM_LINES_FAILURE", "log.num_log_lines_sent_on_failure"},
		{"LOG_NUM_LINES_TIMEOUT", "log.num_log_lines_sent_on_timeout"},
		{"LOG_NUM_LINES_SUCCESS", "log.num_log_lines_sent_on_success"},
		{"LOG_MAX_LINE_LENGTH", "log.max_log_line_length"},
		{"UPDATES_STATUS_SOCKET_PORT", "updates.status_update_socket_port"},
		{"UPDATES_STATUS_MESSAGE_MAX_BYTES", "updates.status_update_message_max_bytes"},
		{"CONFIG_MAX_RESOLUTION_DEPTH", "configuration.max_config_resolution_depth"},
		{"CONFIG_MAX_RESOLUTION_ITERATIONS", "configuration.max_config_resolution_iterations"},
	} {
		add(e.env, e.path, intConverter)
	}

	for _, e := range []envEntry{
		{"TASK_VERSION_NUMBER", "task.version_number"},
	} {
		add(e.env, e.path, int64Converter)
	}

	for _, e := range []envEntry{
		{"API_MANAGED_PROBABILITY", "api.managed_probability"},
		{"API_FAILURE_REPORT_PROBABILITY", "api.failure_report_probability"},
		{"API_TIMEOUT_REPORT_PROBABILITY", "api.timeout_report_probability"},
	} {
		add(e.env, e.path, floatConverter)
	}

	for _, e := range []envEntry{
		{"TASK_IS_SERVICE", "task.is_service"},
		{"TASK_IS_PASSIVE", "task.is_passive"},
		{"TASK_AUTO_CREATE_TASK", "task.auto_create_task"},
		{"API_OFFLINE_MODE", "api.offline_mode"},
		{"API_PREVENT_OFFLINE_EXECUTION", "api.prevent_offline_execution"},
		{"PROCESS_STRIP_SHELL_WRAPPING", "process.strip_shell_wrapping"},
		{"PROCESS_GROUP_TERMINATION", "process.process_group_termination"},
		{"IO_CLEANUP_INPUT_FILE", "io.cleanup_input_file"},
		{"IO_NO_CLEANUP_RESULT_FILE", "io.no_cleanup_result_file"},
		{"LOG_SECRETS", "log.log_secrets"},
		{"LOG_INPUT_VALUE", "log.log_input_value"},
		{"LOG_RESULT_VALUE", "log.log_result_value"},
		{"LOG_INCLUDE_TIMESTAMPS", "log.include_timestamps"},
		{"LOG_SEPARATE_STDOUT_STDERR", "log.separate_stdout_and_stderr_logs"},
		{"UPDATES_ENABLE_STATUS_LISTENER", "updates.enable_status_update_listener"},
		{"CONFIG_OVERWRITE_ENV", "configuration.overwrite_env_during_resolution"},
		{"CONFIG_FAIL_FAST", "configuration.fail_fast_config_resolution"},
		{"CONFIG_EXIT_AFTER_WRITING_VARS", "configuration.exit_after_writing_variables"},
	} {
		add(e.env, e.path, boolConverter)
	}

	for _, e := range []envEntry{
		{"API_HEARTBEAT_INTERVAL", "api.heartbeat_interval"},
		{"API_ERROR_TIMEOUT", "api.error_timeout"},
		{"API_RETRY_DELAY", "api.retry_delay"},
		{"API_RESUME_DELAY", "api.resume_delay"},
		{"API_CREATION_ERROR_TIMEOUT", "api.creation_error_timeout"},
		{"API_CREATION_CONFLICT_TIMEOUT", "api.creation_conflict_timeout"},
		{"API_CREATION_CONFLICT_RETRY_DELAY", "api.creation_conflict_retry_delay"},
		{"API_REQUEST_TIMEOUT", "api.request_timeout"},
		{"API_FINAL_UPDATE_TIMEOUT", "api.final_update_timeout"},
		{"PROCESS_TIMEOUT", "process.timeout"},
		{"PROCESS_RETRY_DELAY", "process.retry_delay"},
		{"PROCESS_CHECK_INTERVAL", "process.check_interval"},
		{"PROCESS_TERMINATION_GRACE_PERIOD", "process.termination_grace_period"},
		{"UPDATES_STATUS_INTERVAL", "updates.status_update_interval"},
		{"CONFIG_TTL", "configuration.config_ttl"},
		{"API_RUNTIME_METADATA_REFRESH_INTERVAL", "api.runtime_metadata_refresh_interval"},
	} {
		add(e.env, e.path, durationConverter)
	}

	for _, e := range []envEntry{
		{"PROCESS_COMMAND_LINE", "process.command_line"},
		{"CONFIG_ENV_LOCATIONS", "configuration.env_locations"},
		{"CONFIG_CONFIG_LOCATIONS", "configuration.config_locations"},
	} {
		add(e.env, e.path, sliceConverter)
	}

	for _, e := range []envEntry{
		{"TASK_INSTANCE_METADATA", "task.instance_metadata"},
	} {
		add(e.env, e.path, mapConverter)
	}

	return entries
}

// envEntry pairs one environment variable's suffix (after envPrefix) with
// the dotted koanf path it overlays.
type envEntry struct {
	env  string
	path string
}

func stringConverter(raw string) (any, bool) { return raw, true }

func intConverter(raw string) (any, bool) {
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func int64Converter(raw string) (any, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	return n, err == nil
}

func floatConverter(raw string) (any, bool) {
	n, err := strconv.ParseFloat(raw, 64)
	return n, err == nil
}

func boolConverter(raw string) (any, bool) {
	b, err := strconv.ParseBool(raw)
	return b, err == nil
}

func durationConverter(raw string) (any, bool) {
	d, err := time.ParseDuration(raw)
	return d, err == nil
}

func sliceConverter(raw string) (any, bool) {
	if raw == "" {
		return nil, false
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out, len(out) > 0
}

func mapConverter(raw string) (any, bool) {
	if raw == "" {
		return nil, false
	}
	out := make(map[string]string)
	for _, item := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(kv) == 2 && kv[0] != "" {
			out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return out, len(out) > 0
}

// envProvider builds the koanf provider that reads every recognized
// SUPERVISOR_* environment variable and converts it to its typed Options
// value, skipping anything unrecognized or malformed (an unset or
// unparsable variable simply leaves the prior layer's value in place).
func envProvider() *env.Env {
	return env.ProviderWithValue(envPrefix, koanfDelim, func(key, value string) (string, any) {
		entry, ok := envConverters[key]
		if !ok {
			return "", nil
		}
		converted, ok := entry.conv(value)
		if !ok {
			return "", nil
		}
		return entry.path, converted
	})
}
