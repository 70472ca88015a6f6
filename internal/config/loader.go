package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/ini.v1"

	"github.com/soulteary/cli-kit/configutil"
)

// ParseFlags parses command-line flags and environment variables and
// returns a Config. Configuration priority: CLI flag > environment
// variable > default value, except that LOG_LEVEL, when set, overrides
// --loglevel. The INI config file supplies only the [wpad] url.
func ParseFlags() (*Config, error) {
	flags := flag.NewFlagSet("wpadproxy", flag.ContinueOnError)

	flags.String("bind", DefaultBind, "the address to bind to (IP literal or hostname)")
	flags.String("port", "", "the port to bind to (required)")
	flags.String("config", "", "path to an INI file containing [wpad] url = <URL>")
	flags.String("force-proxy", "", "a PAC-result-format string applied to all requests; disables WPAD")
	flags.String("loglevel", DefaultLogLevel, "one of debug/info/warning/error")
	flags.String("log-format", DefaultLogFormat, "console or json")
	flags.Bool("systemd", false, "emit a service-manager readiness notification after the listener binds (log output is not redirected)")
	flags.Int("admin-port", DefaultAdminPort, "loopback-only admin HTTP port for /healthz, /readyz, /metrics (0 disables)")
	flags.String("admin-api-key", "", "if set, require this API key (X-API-Key, Bearer, or api_key param) on the admin port")
	flags.String("wpad-cache", DefaultWpadCachePath, "path to persist the last-good WPAD snapshot (\"\" disables)")
	flags.Int("wpad-timeout", DefaultWpadTimeoutSecs, "per-candidate WPAD fetch timeout, in seconds")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	configPath := configutil.ResolveString(flags, "config", EnvConfigFile, "", true)

	var wpadURL string
	if configPath != "" {
		url, err := loadWpadURL(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
		wpadURL = url
	}

	bind := configutil.ResolveString(flags, "bind", EnvBind, DefaultBind, true)
	port := configutil.ResolveString(flags, "port", EnvPort, "", true)
	forceProxy := configutil.ResolveString(flags, "force-proxy", EnvForceProxy, "", true)
	logLevel := configutil.ResolveString(flags, "loglevel", EnvLogLevel, DefaultLogLevel, true)
	if envLevel := os.Getenv(EnvLogLevel); envLevel != "" {
		logLevel = envLevel
	}
	logFormat := configutil.ResolveString(flags, "log-format", EnvLogFormat, DefaultLogFormat, true)
	systemd := configutil.ResolveBool(flags, "systemd", EnvSystemd, false)
	adminPort := configutil.ResolveInt(flags, "admin-port", EnvAdminPort, DefaultAdminPort, true)
	adminAPIKey := configutil.ResolveString(flags, "admin-api-key", EnvAdminAPIKey, "", true)
	wpadCache := configutil.ResolveString(flags, "wpad-cache", EnvWpadCache, DefaultWpadCachePath, true)
	wpadTimeoutSecs := configutil.ResolveInt(flags, "wpad-timeout", EnvWpadTimeout, DefaultWpadTimeoutSecs, true)

	cfg := &Config{
		Bind:          bind,
		Port:          port,
		Listen:        fmt.Sprintf("%s:%s", bind, port),
		ConfigFile:    configPath,
		WpadURL:       wpadURL,
		ForceProxy:    forceProxy,
		LogLevel:      logLevel,
		LogFormat:     logFormat,
		Systemd:       systemd,
		AdminPort:     adminPort,
		AdminAPIKey:   adminAPIKey,
		WpadCachePath: wpadCache,
		WpadTimeout:   time.Duration(wpadTimeoutSecs) * time.Second,
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadWpadURL reads the [wpad] url key from an INI config file. Absence of
// the file, the section, or the key is not an error — the controller falls
// through to DHCP/DNS discovery; unknown keys are ignored.
func loadWpadURL(path string) (string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to parse config file: %w", err)
	}

	section, err := cfg.GetSection("wpad")
	if err != nil {
		return "", nil
	}

	return section.Key("url").String(), nil
}

// ValidateConfig performs validation on the configuration to ensure all
// required fields are set and valid.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if cfg.Port == "" {
		return fmt.Errorf("port must be specified")
	}
	if cfg.Bind == "" {
		return fmt.Errorf("bind address must be specified")
	}
	if cfg.AdminPort < 0 || cfg.AdminPort > 65535 {
		return fmt.Errorf("admin-port out of range: %d", cfg.AdminPort)
	}
	return nil
}
