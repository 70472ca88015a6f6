// Package config provides configuration management for wpadproxy.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	// Bind is the literal IP or hostname the Listener resolves and binds to.
	Bind string
	// Port is the TCP port the Listener binds to. Required.
	Port string
	// Listen is Bind+Port combined for display/logging purposes; the
	// Listener still resolves Bind independently since a hostname may
	// resolve to more than one address.
	Listen string

	// ConfigFile is the path to the INI file containing [wpad] url = ...
	ConfigFile string
	// WpadURL is the candidate URL read from ConfigFile's [wpad] section,
	// if present. Empty means WpadController falls through to DHCP/DNS
	// discovery.
	WpadURL string

	// ForceProxy, when non-empty, is a PAC-result-format string applied to
	// every request; WPAD discovery is bypassed entirely.
	ForceProxy string

	LogLevel  string
	LogFormat string
	Systemd   bool

	// AdminPort is the loopback-only admin HTTP port; 0 disables it.
	AdminPort int
	// AdminAPIKey, when non-empty, requires the AdminServer's endpoints to
	// present it via X-API-Key, Authorization: Bearer, or api_key query
	// param. Empty disables authentication (the admin port is already
	// loopback-only).
	AdminAPIKey string
	// WpadCachePath is where the last-good WpadSnapshot is persisted.
	// Empty disables snapshot persistence.
	WpadCachePath string
	// WpadTimeout bounds each per-candidate WPAD fetch attempt.
	WpadTimeout time.Duration
}
