// Package config provides TOML configuration loading for devbridge.
// The configuration file lives at ~/.devbridge/config.toml by default, but can
// be overridden with the --config flag. Values are layered as
// defaults < file < DEVBRIDGE_* environment < CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "DEVBRIDGE_"

// Config represents the configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// via struct tags.
type Config struct {
	// Addr is the host:port the HTTP server listens on.
	Addr string `toml:"addr"`

	// Prefix is the path the bridge endpoints are mounted under.
	Prefix string `toml:"prefix"`

	// ProjectRoot is the work tree the agent edits and the VCS inspects.
	ProjectRoot string `toml:"project_root"`

	Agent   AgentConfig   `toml:"agent"`
	VCS     VCSConfig     `toml:"vcs"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	Server  ServerConfig  `toml:"server"`
}

// AgentConfig controls how the coding agent is launched.
type AgentConfig struct {
	Executable     string `toml:"executable"`
	DisplayName    string `toml:"display_name"`
	PermissionMode string `toml:"permission_mode"`

	// BaseURL is exported to the agent as BaseURLEnv. Empty disables the override.
	BaseURL    string `toml:"base_url"`
	BaseURLEnv string `toml:"base_url_env"`

	ExtraArgs []string `toml:"extra_args"`

	TimeoutSeconds   int `toml:"timeout_seconds"`
	KillGraceSeconds int `toml:"kill_grace_seconds"`

	// MaxOutputBytes caps each captured stream. 0 keeps everything.
	MaxOutputBytes int `toml:"max_output_bytes"`

	// RatePerMinute limits submissions. 0 disables the limiter.
	RatePerMinute int `toml:"rate_per_minute"`
	Burst         int `toml:"burst"`
}

// VCSConfig controls the version-control tool.
type VCSConfig struct {
	Executable     string `toml:"executable"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	// MaxParallelDiffs bounds the per-file diff fan-out. 0 runs all at once.
	MaxParallelDiffs int `toml:"max_parallel_diffs"`
}

// StorageConfig controls the invocation history.
type StorageConfig struct {
	// Path is the SQLite file. ":memory:" keeps history in-process; empty
	// disables history.
	Path string `toml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"`
	Output   string `toml:"output"`
	FilePath string `toml:"file_path"`
}

// ServerConfig toggles optional endpoints.
type ServerConfig struct {
	EnableEvents           bool `toml:"enable_events"`
	EnableMetrics          bool `toml:"enable_metrics"`
	ShutdownTimeoutSeconds int  `toml:"shutdown_timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:        DefaultAddr,
		Prefix:      DefaultPrefix,
		ProjectRoot: DefaultProjectRoot,
		Agent: AgentConfig{
			Executable:       DefaultAgentExecutable,
			DisplayName:      DefaultAgentDisplayName,
			PermissionMode:   DefaultAgentPermissionMode,
			BaseURL:          DefaultAgentBaseURL,
			BaseURLEnv:       DefaultAgentBaseURLEnv,
			TimeoutSeconds:   DefaultAgentTimeoutSeconds,
			KillGraceSeconds: DefaultAgentKillGrace,
		},
		VCS: VCSConfig{
			Executable:     DefaultVCSExecutable,
			TimeoutSeconds: DefaultVCSTimeoutSeconds,
		},
		Storage: StorageConfig{Path: DefaultStoragePath},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		Server: ServerConfig{
			EnableEvents:           true,
			EnableMetrics:          true,
			ShutdownTimeoutSeconds: int(DefaultShutdownTimeout / time.Second),
		},
	}
}

// AgentTimeout returns the agent deadline.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// AgentKillGrace returns the pause between SIGTERM and SIGKILL.
func (c *Config) AgentKillGrace() time.Duration {
	return time.Duration(c.Agent.KillGraceSeconds) * time.Second
}

// VCSTimeout returns the per-subcommand VCS deadline.
func (c *Config) VCSTimeout() time.Duration {
	return time.Duration(c.VCS.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long graceful shutdown may take.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if !strings.HasPrefix(c.Prefix, "/") {
		return fmt.Errorf("prefix must start with '/': %q", c.Prefix)
	}
	if c.ProjectRoot == "" {
		return fmt.Errorf("project_root must not be empty")
	}
	if strings.TrimSpace(c.Agent.Executable) == "" {
		return fmt.Errorf("agent.executable must not be empty")
	}
	if c.Agent.BaseURL != "" && c.Agent.BaseURLEnv == "" {
		return fmt.Errorf("agent.base_url_env must be set when agent.base_url is")
	}
	if strings.TrimSpace(c.VCS.Executable) == "" {
		return fmt.Errorf("vcs.executable must not be empty")
	}

	for _, f := range []struct {
		name string
		v    int
	}{
		{"agent.timeout_seconds", c.Agent.TimeoutSeconds},
		{"agent.kill_grace_seconds", c.Agent.KillGraceSeconds},
		{"agent.max_output_bytes", c.Agent.MaxOutputBytes},
		{"agent.rate_per_minute", c.Agent.RatePerMinute},
		{"agent.burst", c.Agent.Burst},
		{"vcs.timeout_seconds", c.VCS.TimeoutSeconds},
		{"vcs.max_parallel_diffs", c.VCS.MaxParallelDiffs},
		{"server.shutdown_timeout_seconds", c.Server.ShutdownTimeoutSeconds},
	} {
		if f.v < 0 {
			return fmt.Errorf("%s must not be negative: %d", f.name, f.v)
		}
	}
	if c.Agent.TimeoutSeconds == 0 {
		return fmt.Errorf("agent.timeout_seconds must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json: %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stderr", "stdout":
	case "file":
		if c.Logging.FilePath == "" {
			return fmt.Errorf("logging.file_path is required when logging.output is file")
		}
	default:
		return fmt.Errorf("logging.output must be stderr, stdout or file: %q", c.Logging.Output)
	}
	return nil
}

// DefaultConfigPath returns the default config file location: ~/.devbridge/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".devbridge", "config.toml"), nil
}

// Load builds a Config from defaults, the TOML file at path, and the
// environment, in that order. It does not validate.
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     A missing default file is not an error.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed, or if an
//     environment override is malformed.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.LoadFromEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies DEVBRIDGE_* overrides using lookup.
func (c *Config) LoadFromEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":                  &c.Addr,
		"PREFIX":                &c.Prefix,
		"PROJECT_ROOT":          &c.ProjectRoot,
		"AGENT_EXECUTABLE":      &c.Agent.Executable,
		"AGENT_PERMISSION_MODE": &c.Agent.PermissionMode,
		"AGENT_BASE_URL":        &c.Agent.BaseURL,
		"AGENT_BASE_URL_ENV":    &c.Agent.BaseURLEnv,
		"VCS_EXECUTABLE":        &c.VCS.Executable,
		"STORAGE_PATH":          &c.Storage.Path,
		"LOG_LEVEL":             &c.Logging.Level,
		"LOG_FORMAT":            &c.Logging.Format,
		"LOG_OUTPUT":            &c.Logging.Output,
		"LOG_FILE":              &c.Logging.FilePath,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AGENT_TIMEOUT_SECONDS":  &c.Agent.TimeoutSeconds,
		"AGENT_MAX_OUTPUT_BYTES": &c.Agent.MaxOutputBytes,
		"AGENT_RATE_PER_MINUTE":  &c.Agent.RatePerMinute,
		"AGENT_BURST":            &c.Agent.Burst,
		"VCS_TIMEOUT_SECONDS":    &c.VCS.TimeoutSeconds,
		"VCS_MAX_PARALLEL_DIFFS": &c.VCS.MaxParallelDiffs,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"ENABLE_EVENTS":  &c.Server.EnableEvents,
		"ENABLE_METRICS": &c.Server.EnableMetrics,
	}
	for key, dst := range bools {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}
	return nil
}
