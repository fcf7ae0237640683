package config

import "time"

// Options is the bootstrap configuration surface: every CLI option and
// its environment-variable counterpart, grouped into namespaces
// (task/api/process/io/log/updates/configuration). A koanf struct tag
// on every leaf names the dotted path used by Load and
// ReloadFromResolved.
type Options struct {
	Task          TaskOptions          `koanf:"task"`
	API           APIOptions           `koanf:"api"`
	Process       ProcessOptions       `koanf:"process"`
	IO            IOOptions            `koanf:"io"`
	Log           LogOptions           `koanf:"log"`
	Updates       UpdatesOptions       `koanf:"updates"`
	Configuration ConfigurationOptions `koanf:"configuration"`
}

// TaskOptions identifies the logical Task this invocation belongs to.
type TaskOptions struct {
	Name              string            `koanf:"name" validate:"required"`
	UUID              string            `koanf:"uuid"`
	VersionNumber     int64             `koanf:"version_number"`
	VersionText       string            `koanf:"version_text"`
	VersionSignature  string            `koanf:"version_signature"`
	IsService         bool              `koanf:"is_service"`
	IsPassive         bool              `koanf:"is_passive"`
	Schedule          string            `koanf:"schedule"`
	MaxConcurrency    int               `koanf:"max_concurrency" validate:"gte=0"`
	MaxConflictingAge int               `koanf:"max_conflicting_age" validate:"gte=0"`
	AutoCreateTask    bool              `koanf:"auto_create_task"`
	InstanceMetadata  map[string]string `koanf:"instance_metadata"`
}

// APIOptions configures the Task Management service client.
type APIOptions struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`
	ErrorTimeout      time.Duration `koanf:"error_timeout" validate:"gt=0"`
	RetryDelay        time.Duration `koanf:"retry_delay" validate:"gte=0"`
	ResumeDelay       time.Duration `koanf:"resume_delay"`

	CreationErrorTimeout       time.Duration `koanf:"creation_error_timeout" validate:"gt=0"`
	CreationConflictTimeout    time.Duration `koanf:"creation_conflict_timeout" validate:"gt=0"`
	CreationConflictRetryDelay time.Duration `koanf:"creation_conflict_retry_delay" validate:"gte=0"`

	RequestTimeout     time.Duration `koanf:"request_timeout" validate:"gt=0"`
	FinalUpdateTimeout time.Duration `koanf:"final_update_timeout" validate:"gt=0"`

	OfflineMode             bool `koanf:"offline_mode"`
	PreventOfflineExecution bool `koanf:"prevent_offline_execution"`

	APIManagedProbability    float64 `koanf:"managed_probability" validate:"gte=0,lte=1"`
	FailureReportProbability float64 `koanf:"failure_report_probability" validate:"gte=0,lte=1"`
	TimeoutReportProbability float64 `koanf:"timeout_report_probability" validate:"gte=0,lte=1"`

	// RuntimeMetadataRefreshInterval re-probes the Runtime Metadata Probe
	// on a timer. Zero disables
	// the refresh loop and the descriptor is captured once at startup.
	RuntimeMetadataRefreshInterval time.Duration `koanf:"runtime_metadata_refresh_interval" validate:"gte=0"`
}

// ProcessOptions configures the Process Executor. CommandLine is ordinarily populated from the CLI's "-- COMMAND
// ARGS..." tail rather than an environment variable, but may also be
// supplied directly for embedded-callback-free testing.
type ProcessOptions struct {
	WorkDir                 string        `koanf:"work_dir"`
	CommandLine             []string      `koanf:"command_line"`
	ShellMode               string        `koanf:"shell_mode" validate:"oneof=auto enable disable"`
	StripShellWrapping      bool          `koanf:"strip_shell_wrapping"`
	ProcessGroupTermination bool          `koanf:"process_group_termination"`
	Timeout                 time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxRetries              int           `koanf:"max_retries" validate:"gte=0"`
	RetryDelay              time.Duration `koanf:"retry_delay" validate:"gte=0"`
	CheckInterval           time.Duration `koanf:"check_interval" validate:"gt=0"`
	TerminationGracePeriod  time.Duration `koanf:"termination_grace_period" validate:"gte=0"`
}

// IOOptions configures input/result value handling.
type IOOptions struct {
	InputValue          string `koanf:"input_value"`
	InputEnvVarName     string `koanf:"input_env_var_name"`
	InputFilename       string `koanf:"input_filename"`
	InputValueFormat    string `koanf:"input_value_format" validate:"omitempty,oneof=text json yaml"`
	CleanupInputFile    bool   `koanf:"cleanup_input_file"`
	ResultFilename      string `koanf:"result_filename"`
	ResultValueFormat   string `koanf:"result_value_format" validate:"omitempty,oneof=text json yaml"`
	NoCleanupResultFile bool   `koanf:"no_cleanup_result_file"`
}

// LogOptions configures logging and the Log Tail Capture.
type LogOptions struct {
	Level                    string `koanf:"level"`
	LogSecrets               bool   `koanf:"log_secrets"`
	LogInputValue            bool   `koanf:"log_input_value"`
	LogResultValue           bool   `koanf:"log_result_value"`
	IncludeTimestamps        bool   `koanf:"include_timestamps"`
	NumLogLinesOnFailure     int    `koanf:"num_log_lines_sent_on_failure" validate:"gte=0"`
	NumLogLinesOnTimeout     int    `koanf:"num_log_lines_sent_on_timeout" validate:"gte=0"`
	NumLogLinesOnSuccess     int    `koanf:"num_log_lines_sent_on_success" validate:"gte=0"`
	MaxLogLineLength         int    `koanf:"max_log_line_length" validate:"gt=0"`
	SeparateStdoutStderrLogs bool   `koanf:"separate_stdout_and_stderr_logs"`
}

// UpdatesOptions configures the Status Listener.
type UpdatesOptions struct {
	EnableStatusUpdateListener  bool          `koanf:"enable_status_update_listener"`
	StatusUpdateSocketPort      int           `koanf:"status_update_socket_port" validate:"gte=0,lte=65535"`
	StatusUpdateMessageMaxBytes int           `koanf:"status_update_message_max_bytes" validate:"gt=0"`
	StatusUpdateInterval        time.Duration `koanf:"status_update_interval" validate:"gte=0"`
}

// ConfigurationOptions configures the Config Resolver.
type ConfigurationOptions struct {
	EnvLocations    []string `koanf:"env_locations" validate:"dive,secretlocation"`
	ConfigLocations []string `koanf:"config_locations" validate:"dive,secretlocation"`

	MergeStrategy string `koanf:"config_merge_strategy" validate:"oneof=DEEP SHALLOW REPLACE ADDITIVE TYPESAFE_REPLACE TYPESAFE_ADDITIVE"`

	OverwriteEnvDuringResolution bool          `koanf:"overwrite_env_during_resolution"`
	ConfigTTL                    time.Duration `koanf:"config_ttl" validate:"gte=0"`
	FailFastConfigResolution     bool          `koanf:"fail_fast_config_resolution"`

	MaxConfigResolutionDepth      int `koanf:"max_config_resolution_depth" validate:"gt=0"`
	MaxConfigResolutionIterations int `koanf:"max_config_resolution_iterations" validate:"gt=0"`

	ResolvedEnvVarNamePrefix         string `koanf:"resolved_env_var_name_prefix"`
	ResolvedEnvVarNameSuffix         string `koanf:"resolved_env_var_name_suffix"`
	ResolvedConfigPropertyNamePrefix string `koanf:"resolved_config_property_name_prefix"`
	ResolvedConfigPropertyNameSuffix string `koanf:"resolved_config_property_name_suffix"`

	EnvVarNameForConfig      string `koanf:"env_var_name_for_config"`
	ConfigPropertyNameForEnv string `koanf:"config_property_name_for_env"`

	EnvOutputFilename    string `koanf:"env_output_filename"`
	EnvOutputFormat      string `koanf:"env_output_format" validate:"omitempty,oneof=dotenv json yaml"`
	ConfigOutputFilename string `koanf:"config_output_filename"`
	ConfigOutputFormat   string `koanf:"config_output_format" validate:"omitempty,oneof=dotenv json yaml"`

	ExitAfterWritingVariables bool `koanf:"exit_after_writing_variables"`
}

// DefaultOptions returns the zero-config defaults, applied before any
// environment or resolved-config overlay.
func DefaultOptions() Options {
	return Options{
		API: APIOptions{
			HeartbeatInterval: 30 * time.Second,
			ErrorTimeout:      60 * time.Second,
			RetryDelay:        5 * time.Second,
			ResumeDelay:       60 * time.Second,

			CreationErrorTimeout:       5 * time.Minute,
			CreationConflictTimeout:    10 * time.Minute,
			CreationConflictRetryDelay: 10 * time.Second,

			RequestTimeout:     30 * time.Second,
			FinalUpdateTimeout: 30 * time.Second,

			APIManagedProbability:    1.0,
			FailureReportProbability: 1.0,
			TimeoutReportProbability: 1.0,
		},
		Process: ProcessOptions{
			ShellMode:               string(processShellAuto),
			ProcessGroupTermination: true,
			MaxRetries:              0,
			RetryDelay:              5 * time.Second,
			CheckInterval:           1 * time.Second,
			TerminationGracePeriod:  10 * time.Second,
		},
		IO: IOOptions{
			InputValueFormat:  "text",
			ResultValueFormat: "text",
		},
		Log: LogOptions{
			Level:                "info",
			IncludeTimestamps:    true,
			NumLogLinesOnFailure: 100,
			NumLogLinesOnTimeout: 100,
			NumLogLinesOnSuccess: 0,
			MaxLogLineLength:     2000,
		},
		Updates: UpdatesOptions{
			StatusUpdateSocketPort:      2373,
			StatusUpdateMessageMaxBytes: 65536,
			StatusUpdateInterval:        0,
		},
		Configuration: ConfigurationOptions{
			MergeStrategy:                    "DEEP",
			MaxConfigResolutionDepth:         8,
			MaxConfigResolutionIterations:    3,
			ResolvedEnvVarNameSuffix:         "_FOR_PROC_WRAPPER_TO_RESOLVE",
			ResolvedConfigPropertyNameSuffix: "__to_resolve",
		},
	}
}

// processShellAuto mirrors internal/process.ShellAuto without importing
// that package here, to keep internal/config free of a dependency on the
// Process Executor's types for a single string constant.
const processShellAuto = "auto"
