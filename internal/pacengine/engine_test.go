package pacengine

import (
	"context"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	metricskit "github.com/soulteary/metrics-kit"

	"github.com/soulteary/wpadproxy/internal/metrics"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(nil)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(e.Stop)
	return e
}

func TestEngine_InitialScriptAlwaysDirect(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := e.FindProxy(ctx, "http://example.com", "example.com")
	if err != nil {
		t.Fatalf("FindProxy() error = %v", err)
	}
	if result != "DIRECT" {
		t.Errorf("FindProxy() = %q, want %q", result, "DIRECT")
	}
}

func TestEngine_SetScript(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	script := `function FindProxyForURL(url, host) {
		if (dnsDomainIs(host, ".booking.com")) {
			return "PROXY localhost:23130";
		}
		return "DIRECT";
	}`
	if err := e.SetScript(ctx, script); err != nil {
		t.Fatalf("SetScript() error = %v", err)
	}

	result, err := e.FindProxy(ctx, "http://www.booking.com", "www.booking.com")
	if err != nil {
		t.Fatalf("FindProxy() error = %v", err)
	}
	if result != "PROXY localhost:23130" {
		t.Errorf("FindProxy() = %q, want %q", result, "PROXY localhost:23130")
	}

	result, err = e.FindProxy(ctx, "http://example.com", "example.com")
	if err != nil {
		t.Fatalf("FindProxy() error = %v", err)
	}
	if result != "DIRECT" {
		t.Errorf("FindProxy() = %q, want %q", result, "DIRECT")
	}
}

func TestEngine_SetScriptParseFailureKeepsOldScript(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	script := `function FindProxyForURL(url, host) { return "PROXY good:80"; }`
	if err := e.SetScript(ctx, script); err != nil {
		t.Fatalf("SetScript() error = %v", err)
	}

	badScript := `function FindProxyForURL(url, host) { this is not valid javascript`
	if err := e.SetScript(ctx, badScript); err == nil {
		t.Fatal("SetScript() with invalid script should return an error")
	}

	result, err := e.FindProxy(ctx, "http://example.com", "example.com")
	if err != nil {
		t.Fatalf("FindProxy() error = %v", err)
	}
	if result != "PROXY good:80" {
		t.Errorf("expected previous script to remain installed, got %q", result)
	}
}

func TestEngine_RecordsEvalMetrics(t *testing.T) {
	m := metrics.New(metricskit.NewRegistry("pacengine_test"))
	e := New(m)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(e.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := e.FindProxy(ctx, "http://example.com", "example.com"); err != nil {
		t.Fatalf("FindProxy() error = %v", err)
	}
	if count := promtestutil.CollectAndCount(m.PacEvalDuration); count == 0 {
		t.Error("PacEvalDuration recorded no samples after a successful eval")
	}

	script := `function FindProxyForURL(url, host) { return 42; }`
	if err := e.SetScript(ctx, script); err != nil {
		t.Fatalf("SetScript() error = %v", err)
	}
	if _, err := e.FindProxy(ctx, "http://example.com", "example.com"); err == nil {
		t.Fatal("FindProxy() expected error for non-string return value")
	}
	if got := promtestutil.ToFloat64(m.PacEvalErrors); got != 1 {
		t.Errorf("PacEvalErrors = %v, want 1", got)
	}
}

func TestEngine_ShExpMatchHelper(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	script := `function FindProxyForURL(url, host) {
		if (shExpMatch(host, "*.example.com")) {
			return "PROXY p:80";
		}
		return "DIRECT";
	}`
	if err := e.SetScript(ctx, script); err != nil {
		t.Fatalf("SetScript() error = %v", err)
	}

	result, err := e.FindProxy(ctx, "http://www.example.com", "www.example.com")
	if err != nil {
		t.Fatalf("FindProxy() error = %v", err)
	}
	if result != "PROXY p:80" {
		t.Errorf("FindProxy() = %q, want %q", result, "PROXY p:80")
	}
}
