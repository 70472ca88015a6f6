package cli

import (
	"testing"
	"time"

	"github.com/soulteary/wpadproxy/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Bind:        "127.0.0.1",
		Port:        "0",
		Listen:      "127.0.0.1:0",
		ForceProxy:  "DIRECT",
		LogLevel:    "info",
		LogFormat:   "console",
		AdminPort:   0,
		WpadTimeout: time.Second,
	}
}

func TestNewServer_NilConfigErrors(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Fatal("NewServer(nil) expected error, got nil")
	}
}

func TestNewServer_WiresAllComponents(t *testing.T) {
	s, err := NewServer(testConfig(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer s.engine.Stop()

	if s.engine == nil || s.resolver == nil || s.wpad == nil || s.listener == nil {
		t.Fatal("NewServer() left a core component nil")
	}
	if s.admin != nil {
		t.Fatal("NewServer() with AdminPort=0 should not construct an admin server")
	}
}

func TestServer_ReadinessRequiresBothConditions(t *testing.T) {
	s, err := NewServer(testConfig(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer s.engine.Stop()

	if s.readiness.Ready() {
		t.Fatal("readiness should not be ready before any component settles")
	}
	s.readiness.MarkListenerBound()
	s.readiness.MarkWpadSettled()
	if !s.readiness.Ready() {
		t.Fatal("readiness should be ready once both conditions are marked")
	}
}
