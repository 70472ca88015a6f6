package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soulteary/cli-kit/testutil"
)

func TestLoadWpadURL(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test-config.ini")

	content := "[wpad]\nurl = http://wpad.example.com/wpad.dat\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	url, err := loadWpadURL(configPath)
	if err != nil {
		t.Fatalf("loadWpadURL() error = %v", err)
	}
	if url != "http://wpad.example.com/wpad.dat" {
		t.Errorf("expected url 'http://wpad.example.com/wpad.dat', got %q", url)
	}
}

func TestLoadWpadURL_NotFound(t *testing.T) {
	url, err := loadWpadURL("/nonexistent/path/config.ini")
	if err != nil {
		t.Errorf("loadWpadURL() should not return error for missing file, got %v", err)
	}
	if url != "" {
		t.Errorf("loadWpadURL() should return empty string for missing file, got %q", url)
	}
}

func TestLoadWpadURL_NoWpadSection(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "no-wpad.ini")

	content := "[other]\nkey = value\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	url, err := loadWpadURL(configPath)
	if err != nil {
		t.Fatalf("loadWpadURL() error = %v", err)
	}
	if url != "" {
		t.Errorf("expected empty url when [wpad] section is absent, got %q", url)
	}
}

func TestLoadWpadURL_UnknownKeysIgnored(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "extra-keys.ini")

	content := "[wpad]\nurl = http://wpad.example.com/wpad.dat\nbogus = ignored\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	url, err := loadWpadURL(configPath)
	if err != nil {
		t.Fatalf("loadWpadURL() error = %v", err)
	}
	if url != "http://wpad.example.com/wpad.dat" {
		t.Errorf("expected url to still parse with unknown keys present, got %q", url)
	}
}

// TestParseFlagsRequiresPort asserts spec.md §6's "-p/--port PORT —
// required" contract: with no --port flag and no WPADPROXY_PORT set,
// ParseFlags must fail rather than silently defaulting the port.
func TestParseFlagsRequiresPort(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	envMgr := testutil.NewEnvManager()
	defer envMgr.Cleanup()

	os.Unsetenv(EnvBind)
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvForceProxy)
	os.Unsetenv(EnvAdminPort)

	os.Args = []string{"wpadproxy"}

	if _, err := ParseFlags(); err == nil {
		t.Fatal("ParseFlags() expected error when --port/WPADPROXY_PORT are both unset, got nil")
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	envMgr := testutil.NewEnvManager()
	defer envMgr.Cleanup()

	os.Unsetenv(EnvBind)
	os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvForceProxy)
	os.Unsetenv(EnvAdminPort)

	os.Args = []string{"wpadproxy", "--port=23128"}

	cfg, err := ParseFlags()
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if cfg.Bind != DefaultBind {
		t.Errorf("Bind = %q, want %q", cfg.Bind, DefaultBind)
	}
	if cfg.Port != "23128" {
		t.Errorf("Port = %q, want %q", cfg.Port, "23128")
	}
	if cfg.Listen != DefaultBind+":23128" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, DefaultBind+":23128")
	}
	if cfg.ForceProxy != "" {
		t.Errorf("ForceProxy = %q, want empty", cfg.ForceProxy)
	}
	if cfg.AdminPort != DefaultAdminPort {
		t.Errorf("AdminPort = %d, want %d", cfg.AdminPort, DefaultAdminPort)
	}
	if cfg.AdminAPIKey != "" {
		t.Errorf("AdminAPIKey = %q, want empty", cfg.AdminAPIKey)
	}
}

func TestParseFlagsAdminAPIKey(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	envMgr := testutil.NewEnvManager()
	defer envMgr.Cleanup()

	os.Args = []string{"wpadproxy", "--port=23128", "--admin-api-key=topsecret"}

	cfg, err := ParseFlags()
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if cfg.AdminAPIKey != "topsecret" {
		t.Errorf("AdminAPIKey = %q, want %q", cfg.AdminAPIKey, "topsecret")
	}
}

func TestParseFlagsCLIPriority(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	envMgr := testutil.NewEnvManager()
	defer envMgr.Cleanup()

	envMgr.Set(EnvBind, "10.0.0.1")
	envMgr.Set(EnvPort, "9090")

	os.Args = []string{"wpadproxy", "-bind", "192.168.1.1", "-port", "23128"}

	cfg, err := ParseFlags()
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if cfg.Listen != "192.168.1.1:23128" {
		t.Errorf("Listen = %q, want %q (CLI should override ENV)", cfg.Listen, "192.168.1.1:23128")
	}
}

func TestParseFlagsEnvVars(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	envMgr := testutil.NewEnvManager()
	defer envMgr.Cleanup()

	envMgr.Set(EnvBind, "127.0.0.1")
	envMgr.Set(EnvPort, "8080")
	envMgr.Set(EnvForceProxy, "PROXY localhost:23128")

	os.Args = []string{"wpadproxy"}

	cfg, err := ParseFlags()
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, "127.0.0.1:8080")
	}
	if cfg.ForceProxy != "PROXY localhost:23128" {
		t.Errorf("ForceProxy = %q, want %q", cfg.ForceProxy, "PROXY localhost:23128")
	}
}

func TestParseFlagsWithConfigFile(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	envMgr := testutil.NewEnvManager()
	defer envMgr.Cleanup()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wpadproxy.ini")
	content := "[wpad]\nurl = http://wpad.example.com/wpad.dat\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Args = []string{"wpadproxy", "-port", "23128", "-config", configPath}

	cfg, err := ParseFlags()
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if cfg.WpadURL != "http://wpad.example.com/wpad.dat" {
		t.Errorf("WpadURL = %q, want %q", cfg.WpadURL, "http://wpad.example.com/wpad.dat")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"empty port", &Config{Bind: "127.0.0.1", Port: ""}, true},
		{"empty bind", &Config{Bind: "", Port: "23128"}, true},
		{"admin port out of range", &Config{Bind: "127.0.0.1", Port: "23128", AdminPort: 70000}, true},
		{"valid config", &Config{Bind: "127.0.0.1", Port: "23128"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
