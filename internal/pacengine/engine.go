// Package pacengine implements the PacEngine collaborator from §4.2: a
// single-threaded JavaScript sandbox, loaded with a PAC script plus the
// standard WPAD helper functions, answering FindProxyForURL(url, host)
// queries. All access is serialized through one goroutine's mailbox since
// the underlying interpreter is not safe for concurrent use.
package pacengine

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	wpaderrors "github.com/soulteary/wpadproxy/internal/errors"
	"github.com/soulteary/wpadproxy/internal/metrics"
)

// initialScript answers every query with DIRECT until a real PAC script is
// installed, per spec.md §3.
const initialScript = `function FindProxyForURL(url, host) { return "DIRECT"; }`

type setScriptRequest struct {
	source  string
	respCh  chan error
}

type findProxyRequest struct {
	url    string
	host   string
	respCh chan findProxyResult
}

type findProxyResult struct {
	result string
	err    error
}

// Engine owns the PAC interpreter and serializes all access to it through a
// single mailbox goroutine.
type Engine struct {
	setScriptCh chan setScriptRequest
	findProxyCh chan findProxyRequest
	stopCh      chan struct{}
	metrics     *metrics.Metrics
}

// New constructs an Engine. Call Start before issuing any requests. m may
// be nil, in which case eval metrics recording is a no-op.
func New(m *metrics.Metrics) *Engine {
	return &Engine{
		setScriptCh: make(chan setScriptRequest),
		findProxyCh: make(chan findProxyRequest),
		stopCh:      make(chan struct{}),
		metrics:     m,
	}
}

// Start launches the mailbox goroutine and installs the initial
// always-DIRECT script. It is not idempotent: calling it twice starts two
// competing owners of the channels, so callers must call it exactly once.
func (e *Engine) Start() error {
	vm := goja.New()
	installHelpers(vm)

	go e.run(vm)

	// Block until the initial script is compiled so Start reports failures
	// synchronously, mirroring init()'s one-time setup in spec.md §4.2.
	respCh := make(chan error, 1)
	e.setScriptCh <- setScriptRequest{source: initialScript, respCh: respCh}
	return <-respCh
}

// Stop terminates the mailbox goroutine.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// SetScript parses and loads source, atomically replacing the active
// script. On parse failure the previous script remains installed and an
// error is returned.
func (e *Engine) SetScript(ctx context.Context, source string) error {
	respCh := make(chan error, 1)
	select {
	case e.setScriptCh <- setScriptRequest{source: source, respCh: respCh}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-respCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FindProxy invokes the installed script's FindProxyForURL(url, host) and
// returns its raw result string.
func (e *Engine) FindProxy(ctx context.Context, url, host string) (string, error) {
	respCh := make(chan findProxyResult, 1)
	select {
	case e.findProxyCh <- findProxyRequest{url: url, host: host, respCh: respCh}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-respCh:
		return res.result, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// run is the single owner of vm; it must never be called from more than one
// goroutine and never touched outside of it.
func (e *Engine) run(vm *goja.Runtime) {
	var findProxyForURL goja.Callable

	for {
		select {
		case <-e.stopCh:
			return

		case req := <-e.setScriptCh:
			program, err := goja.Compile("pac.js", req.source, false)
			if err != nil {
				req.respCh <- wpaderrors.PacError(wpaderrors.ErrPacParseFailed, "failed to compile PAC script", err)
				continue
			}
			if _, err := vm.RunProgram(program); err != nil {
				req.respCh <- wpaderrors.PacError(wpaderrors.ErrPacParseFailed, "failed to run PAC script", err)
				continue
			}
			fn, ok := goja.AssertFunction(vm.Get("FindProxyForURL"))
			if !ok {
				req.respCh <- wpaderrors.New(wpaderrors.ErrPacParseFailed, "PAC script does not define FindProxyForURL")
				continue
			}
			findProxyForURL = fn
			req.respCh <- nil

		case req := <-e.findProxyCh:
			start := time.Now()
			if findProxyForURL == nil {
				e.metrics.RecordPacEval("error", time.Since(start).Seconds())
				req.respCh <- findProxyResult{err: wpaderrors.New(wpaderrors.ErrPacNotInit, "PAC engine has no script installed")}
				continue
			}
			val, err := findProxyForURL(goja.Undefined(), vm.ToValue(req.url), vm.ToValue(req.host))
			if err != nil {
				e.metrics.RecordPacEval("error", time.Since(start).Seconds())
				req.respCh <- findProxyResult{err: wpaderrors.PacError(wpaderrors.ErrPacEvalFailed, "FindProxyForURL threw", err)}
				continue
			}
			str, ok := val.Export().(string)
			if !ok {
				e.metrics.RecordPacEval("error", time.Since(start).Seconds())
				req.respCh <- findProxyResult{err: wpaderrors.New(wpaderrors.ErrPacEvalFailed, fmt.Sprintf("FindProxyForURL returned non-string: %v", val.Export()))}
				continue
			}
			e.metrics.RecordPacEval("success", time.Since(start).Seconds())
			req.respCh <- findProxyResult{result: str}
		}
	}
}
