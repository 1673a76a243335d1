package config

import "time"

const (
	// DefaultAddr is the default listen address for the HTTP server.
	DefaultAddr = "127.0.0.1:7070"

	// DefaultPrefix is where the bridge endpoints are mounted.
	DefaultPrefix = "/_ai_coding"

	// DefaultProjectRoot falls back to the current working directory.
	DefaultProjectRoot = "."

	DefaultAgentExecutable     = "claude"
	DefaultAgentDisplayName    = "Claude"
	DefaultAgentPermissionMode = "bypassPermissions"
	DefaultAgentBaseURL        = "https://dashscope.aliyuncs.com/api/v2/apps/claude-code-proxy"
	DefaultAgentBaseURLEnv     = "ANTHROPIC_BASE_URL"
	DefaultAgentTimeoutSeconds = 100
	DefaultAgentKillGrace      = 5

	DefaultVCSExecutable     = "git"
	DefaultVCSTimeoutSeconds = 30

	// DefaultStoragePath keeps history for the life of the process only.
	DefaultStoragePath = ":memory:"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultLogOutput = "stderr"

	DefaultShutdownTimeout = 10 * time.Second
)
