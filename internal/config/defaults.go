package config

import "time"

// Environment variable names for configuration, namespaced WPADPROXY_*
// following the teacher's APT_PROXY_* convention.
const (
	EnvBind        = "WPADPROXY_HOST"
	EnvPort        = "WPADPROXY_PORT"
	EnvConfigFile  = "WPADPROXY_CONFIG"
	EnvForceProxy  = "WPADPROXY_FORCE_PROXY"
	EnvAdminPort   = "WPADPROXY_ADMIN_PORT"
	EnvAdminAPIKey = "WPADPROXY_ADMIN_API_KEY"
	EnvWpadCache   = "WPADPROXY_WPAD_CACHE"
	EnvWpadTimeout = "WPADPROXY_WPAD_TIMEOUT"
	EnvLogFormat   = "WPADPROXY_LOG_FORMAT"
	EnvSystemd     = "WPADPROXY_SYSTEMD"

	// EnvLogLevel overrides --loglevel when set, per spec.md §6.
	EnvLogLevel = "LOG_LEVEL"
)

// Default configuration values.
const (
	DefaultBind = "127.0.0.1"
	// No DefaultPort: --port is required per spec.md §6 ("-p/--port PORT
	// — required"), mirroring pac4cli/__main__.py's argparse --port
	// having no default.

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultAdminPort       = 0
	DefaultWpadCachePath   = ""
	DefaultWpadTimeoutSecs = 10
	DefaultConfigFileName  = "wpadproxy.ini"
)

// DefaultWpadTimeout is the per-candidate WPAD fetch timeout from spec.md §5.
const DefaultWpadTimeout = DefaultWpadTimeoutSecs * time.Second
