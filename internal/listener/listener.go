// Package listener implements Listener (§4.6): bind-address resolution and
// the accept loop that hands each accepted connection to the
// ConnectionHandler in a fresh goroutine.
package listener

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	logger "github.com/soulteary/logger-kit"
)

// ConnectionHandler is the subset of handler.Handler a Listener depends on.
type ConnectionHandler interface {
	Handle(ctx context.Context, conn net.Conn)
}

// Listener resolves a bind address (literal IP or hostname, IPv4 only per
// spec.md §9) and runs one accept loop per resolved address.
type Listener struct {
	handler      ConnectionHandler
	systemd      bool
	onFirstBind  func()
	listenMu     sync.Mutex
	netListeners []net.Listener
}

// New constructs a Listener that dispatches accepted connections to handler.
// When systemd is true, a single readiness notification is emitted after
// the first successful bind, per spec.md §6's service-manager contract.
func New(handler ConnectionHandler, systemd bool) *Listener {
	return &Listener{handler: handler, systemd: systemd}
}

// OnFirstBind registers a callback invoked once, after the first successful
// bind, alongside the systemd readiness notification. Used by callers that
// track their own readiness state (e.g. AdminServer's /readyz).
func (l *Listener) OnFirstBind(fn func()) {
	l.onFirstBind = fn
}

// ResolveBindAddresses resolves bind into one or more dialable
// "ip:port" addresses: bind is used as a literal IP if parseable, otherwise
// resolved via IPv4-only name service and every resolved address is
// returned.
func ResolveBindAddresses(ctx context.Context, bind string, port string) ([]string, error) {
	if ip := net.ParseIP(bind); ip != nil {
		return []string{net.JoinHostPort(bind, port)}, nil
	}

	var resolver net.Resolver
	ips, err := resolver.LookupIP(ctx, "ip4", bind)
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip.String(), port))
	}
	return addrs, nil
}

// ListenAndServe resolves bind:port into one or more addresses, binds a TCP
// listener on each, and runs an accept loop for each bound listener until
// ctx is canceled. It blocks until all accept loops have returned.
func (l *Listener) ListenAndServe(ctx context.Context, bind string, port int) error {
	addrs, err := ResolveBindAddresses(ctx, bind, strconv.Itoa(port))
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	readyOnce := false

	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}

		l.listenMu.Lock()
		l.netListeners = append(l.netListeners, ln)
		l.listenMu.Unlock()

		logger.Default().Info().Str("addr", addr).Msg("listener: bound")

		if !readyOnce {
			l.notifyReady()
			if l.onFirstBind != nil {
				l.onFirstBind()
			}
			readyOnce = true
		}

		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			l.acceptLoop(ctx, ln)
		}(ln)
	}

	go func() {
		<-ctx.Done()
		l.closeAll()
	}()

	wg.Wait()
	return nil
}

func (l *Listener) notifyReady() {
	if !l.systemd {
		return
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Default().Warn().Err(err).Msg("listener: systemd readiness notification failed")
	}
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Default().Warn().Err(err).Msg("listener: accept failed")
				return
			}
		}
		go l.handler.Handle(ctx, conn)
	}
}

func (l *Listener) closeAll() {
	l.listenMu.Lock()
	defer l.listenMu.Unlock()
	for _, ln := range l.netListeners {
		_ = ln.Close()
	}
}
