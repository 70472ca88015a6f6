// Package cli wires Config into a running wpadproxy Server: WpadController,
// PacEngine, Resolver, Listener, and AdminServer, following the
// bind/serve/graceful-shutdown shape of the teacher's own daemon.
package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	logger "github.com/soulteary/logger-kit"
	metricskit "github.com/soulteary/metrics-kit"

	"github.com/soulteary/wpadproxy/internal/admin"
	"github.com/soulteary/wpadproxy/internal/config"
	wpaderrors "github.com/soulteary/wpadproxy/internal/errors"
	"github.com/soulteary/wpadproxy/internal/handler"
	"github.com/soulteary/wpadproxy/internal/listener"
	"github.com/soulteary/wpadproxy/internal/metrics"
	"github.com/soulteary/wpadproxy/internal/netinfo"
	"github.com/soulteary/wpadproxy/internal/pacengine"
	"github.com/soulteary/wpadproxy/internal/resolver"
	"github.com/soulteary/wpadproxy/internal/suffix"
	"github.com/soulteary/wpadproxy/internal/wpad"
)

// Server is the main application server: it owns every long-lived
// component and coordinates startup and graceful shutdown.
type Server struct {
	config *config.Config

	engine    *pacengine.Engine
	resolver  *resolver.Resolver
	netinfo   netinfo.Provider
	wpad      *wpad.Controller
	listener  *listener.Listener
	admin     *admin.Server
	readiness *admin.Readiness
	metrics   *metrics.Metrics
}

// NewServer creates and wires a Server from cfg. Components are
// constructed but not started; call Start to run them.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	s := &Server{config: cfg}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}
	return s, nil
}

func (s *Server) initialize() error {
	// Metrics are collected regardless of whether AdminServer is enabled,
	// so nothing is lost if --admin-port is turned on after the fact;
	// only the /metrics exposition itself is gated on it.
	s.metrics = metrics.New(metricskit.NewRegistry("wpadproxy"))

	s.engine = pacengine.New(s.metrics)
	if err := s.engine.Start(); err != nil {
		return wpaderrors.Wrap(wpaderrors.ErrPacNotInit, "failed to start PAC engine", err)
	}

	s.resolver = resolver.New(s.engine, s.config.ForceProxy)

	niProvider, err := netinfo.NewNetworkManagerProvider()
	if err != nil {
		logger.Default().Warn().Err(err).Msg("cli: network-info provider unavailable, WPAD will rely on config/DNS discovery only")
		niProvider = netinfo.NewNoopProvider()
	}
	s.netinfo = niProvider

	s.wpad, err = wpad.New(wpad.Options{
		Engine:    s.engine,
		Resolver:  s.resolver,
		NetInfo:   s.netinfo,
		Suffix:    suffix.NewResolver(),
		ConfigURL: s.config.WpadURL,
		CachePath: s.config.WpadCachePath,
		Timeout:   s.config.WpadTimeout,
		Metrics:   s.metrics,
	})
	if err != nil {
		return wpaderrors.Wrap(wpaderrors.ErrWpadNoCandidate, "failed to initialize WPAD controller", err)
	}

	connectionHandler := handler.New(s.resolver, s.metrics)
	s.listener = listener.New(connectionHandler, s.config.Systemd)

	s.readiness = &admin.Readiness{}
	s.listener.OnFirstBind(s.readiness.MarkListenerBound)
	s.wpad.OnSettled(s.readiness.MarkWpadSettled)

	if s.config.AdminPort != 0 {
		s.admin = admin.New(s.config.AdminPort, s.config.AdminAPIKey, s.readiness)
	}

	return nil
}

// Start runs the WPAD controller's initial discovery, the listener's
// accept loops, and (if configured) the admin server, until SIGINT/SIGTERM
// or a fatal component error.
func (s *Server) Start() error {
	logger.Default().Info().Str("listen", s.config.Listen).Msg("wpadproxy: starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port, err := strconv.Atoi(s.config.Port)
	if err != nil {
		return wpaderrors.Wrap(wpaderrors.ErrConfigInvalid, "invalid port", err)
	}

	if s.config.ForceProxy == "" {
		s.wpad.Start(ctx)
	} else {
		// force_proxy bypasses WPAD discovery entirely (spec.md §9's
		// preserved ordering: the PAC engine still initializes, but no
		// fetch is ever attempted), so readiness never waits on it.
		s.readiness.MarkWpadSettled()
	}

	serverErr := make(chan error, 2)
	go func() {
		if err := s.listener.ListenAndServe(ctx, s.config.Bind, port); err != nil {
			serverErr <- err
		}
	}()

	if s.admin != nil {
		go func() {
			if err := s.admin.ListenAndServe(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	logger.Default().Info().Msg("wpadproxy: started")

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	logger.Default().Info().Msg("wpadproxy: shutting down")
	s.engine.Stop()
	_ = s.netinfo.Close()
	logger.Default().Info().Msg("wpadproxy: shutdown complete")
	return nil
}

// Daemon is the main entry point for starting the application.
func Daemon(cfg *config.Config) {
	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("wpadproxy: failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("wpadproxy: server error: %v", err)
	}
}
