// Package wpad implements WpadController (§4.5): computes candidate PAC
// URLs from system network state, fetches them in order, atomically swaps
// the active PAC script, and reacts to network-state-change notifications.
package wpad

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	wpaderrors "github.com/soulteary/wpadproxy/internal/errors"
	"github.com/soulteary/wpadproxy/internal/metrics"
	"github.com/soulteary/wpadproxy/internal/netinfo"
	logger "github.com/soulteary/logger-kit"
)

// PacEngine is the subset of pacengine.Engine the controller depends on.
type PacEngine interface {
	SetScript(ctx context.Context, source string) error
}

// DirectSetter is the subset of resolver.Resolver the controller depends
// on: toggling the transient force_direct override for the duration of a
// refresh.
type DirectSetter interface {
	SetForceDirect(on bool)
}

// Controller owns WPAD candidate derivation and the fetch/install loop. It
// is safe for concurrent use; Refresh calls coalesce per spec.md §4.5's
// single-flight semantics.
type Controller struct {
	engine   PacEngine
	resolver DirectSetter
	netinfo  netinfo.Provider
	suffix   suffixSplitter
	client   *http.Client

	configURL string
	cachePath string
	timeout   time.Duration
	metrics   *metrics.Metrics

	mu         sync.Mutex
	refreshing bool
	pending    bool

	settleOnce sync.Once
	onSettled  func()

	snapMu   sync.Mutex
	snapshot *Snapshot
}

// OnSettled registers a callback invoked exactly once, after the first
// fetch-and-install pass (triggered by Start or an explicit Refresh) has
// completed — success or all candidates exhausted. Used by callers that
// track their own readiness state (e.g. AdminServer's /readyz, gated on
// spec.md §4.7's "first WPAD attempt has completed").
func (c *Controller) OnSettled(fn func()) {
	c.onSettled = fn
}

// Options configures a new Controller.
type Options struct {
	Engine    PacEngine
	Resolver  DirectSetter
	NetInfo   netinfo.Provider
	Suffix    suffixSplitter
	ConfigURL string
	CachePath string
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

// New constructs a Controller. It loads any persisted snapshot from
// opts.CachePath but does not perform an initial fetch — call Refresh for
// that.
func New(opts Options) (*Controller, error) {
	snap, err := loadSnapshot(opts.CachePath)
	if err != nil {
		logger.Default().Warn().Err(err).Msg("wpad: failed to load persisted snapshot")
	}

	return &Controller{
		engine:    opts.Engine,
		resolver:  opts.Resolver,
		netinfo:   opts.NetInfo,
		suffix:    opts.Suffix,
		client:    newFetchClient(opts.Timeout),
		configURL: opts.ConfigURL,
		cachePath: opts.CachePath,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		snapshot:  snap,
	}, nil
}

// Start performs the initial refresh (unless bypassed by the caller when
// --force-proxy is set) and subscribes to network state-change
// notifications so that subsequent changes trigger a refresh automatically,
// per spec.md §4.5's "Triggers" list.
func (c *Controller) Start(ctx context.Context) {
	c.netinfo.OnStateChanged(func() {
		c.Refresh(context.Background())
	})
	c.Refresh(ctx)
}

// Refresh triggers a WPAD candidate fetch-and-install pass. If one is
// already in progress, this trigger coalesces into exactly one additional
// pass scheduled after the current one completes (spec.md §3/§4.5
// single-flight semantics) — it never blocks the caller and never runs two
// fetch loops concurrently.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	if c.refreshing {
		c.pending = true
		c.mu.Unlock()
		c.metrics.RecordRefreshCoalesced()
		return
	}
	c.refreshing = true
	c.mu.Unlock()

	go c.runLoop(ctx)
}

func (c *Controller) runLoop(ctx context.Context) {
	for {
		c.doRefresh(ctx)
		if c.onSettled != nil {
			c.settleOnce.Do(c.onSettled)
		}

		c.mu.Lock()
		if c.pending {
			c.pending = false
			c.mu.Unlock()
			continue
		}
		c.refreshing = false
		c.mu.Unlock()
		return
	}
}

// doRefresh runs exactly one fetch-and-install pass across the candidate
// list, per spec.md §4.5.
func (c *Controller) doRefresh(ctx context.Context) {
	c.resolver.SetForceDirect(true)

	dhcpURLs := c.netinfo.ListActiveDHCPPacURLs(ctx)
	searchDomains := c.netinfo.ListActiveSearchDomains(ctx)
	candidates := ComputeCandidates(c.configURL, dhcpURLs, searchDomains, c.suffix)

	for _, candidate := range candidates {
		script, ok := c.tryFetch(ctx, candidate)
		if !ok {
			continue
		}
		if c.unchangedSinceLastInstall(script) {
			logger.Default().Debug().Str("candidate", candidate).Msg("wpad: fetched script unchanged, skipping reinstall")
			c.resolver.SetForceDirect(false)
			return
		}
		if err := c.install(ctx, script, candidate); err != nil {
			logger.Default().Warn().Str("candidate", candidate).Err(err).Msg("wpad: failed to install fetched script")
			continue
		}
		c.resolver.SetForceDirect(false)
		return
	}

	// No candidate succeeded: consult the last-good snapshot before
	// degrading to Direct (SPEC_FULL.md's WpadSnapshot addition).
	c.snapMu.Lock()
	snap := c.snapshot
	c.snapMu.Unlock()

	if snap != nil {
		if err := c.engine.SetScript(ctx, snap.Script); err == nil {
			logger.Default().Warn().Str("source", snap.SourceURL).Msg("wpad: all candidates failed, reinstalled last-good snapshot")
			c.resolver.SetForceDirect(false)
			return
		}
	}

	logger.Default().Warn().Msg("wpad: all candidates failed and no usable snapshot, falling back to DIRECT")
}

// unchangedSinceLastInstall reports whether script is byte-identical to the
// currently installed snapshot, letting a refresh skip a redundant
// SetScript/save round-trip when the fetched PAC content hasn't changed.
func (c *Controller) unchangedSinceLastInstall(script string) bool {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	return c.snapshot != nil && c.snapshot.Script == script
}

// tryFetch performs one candidate GET with a per-candidate timeout. Any
// failure (connect, HTTP error, read error) is non-fatal: it just means the
// caller should try the next candidate.
func (c *Controller) tryFetch(ctx context.Context, candidateURL string) (string, bool) {
	start := time.Now()
	outcome := "error"
	defer func() {
		c.metrics.RecordWpadFetch(outcome, time.Since(start).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, candidateURL, nil)
	if err != nil {
		return "", false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Default().Info().Str("candidate", candidateURL).Err(err).Msg("wpad: candidate fetch failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Default().Info().Str("candidate", candidateURL).Int("status", resp.StatusCode).Msg("wpad: candidate fetch returned non-2xx")
		return "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Default().Info().Str("candidate", candidateURL).Err(err).Msg("wpad: failed to read candidate body")
		return "", false
	}

	outcome = "success"
	return string(body), true
}

// install hands script to the PAC engine and, on success, persists it as
// the new last-good snapshot.
func (c *Controller) install(ctx context.Context, script, sourceURL string) error {
	if err := c.engine.SetScript(ctx, script); err != nil {
		return wpaderrors.PacError(wpaderrors.ErrPacParseFailed, "failed to install fetched PAC script", err)
	}

	snap := &Snapshot{Script: script, SourceURL: sourceURL, InstalledAt: time.Now()}
	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()

	if err := snap.save(c.cachePath); err != nil {
		logger.Default().Warn().Str("path", c.cachePath).Err(err).Msg("wpad: failed to persist snapshot")
	}
	c.metrics.RecordInstall()
	return nil
}
