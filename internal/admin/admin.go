// Package admin implements AdminServer (§4.7): a loopback-only HTTP surface
// exposing /healthz, /readyz, and /metrics. It never touches client proxy
// traffic.
package admin

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/soulteary/logger-kit"

	"github.com/soulteary/wpadproxy/internal/api"
	"github.com/soulteary/wpadproxy/internal/errors"
	"github.com/soulteary/wpadproxy/pkg/httplog"
)

// Readiness tracks the two conditions spec.md §4.7 requires before
// /readyz reports ready: the listener has bound at least one address, and
// the first WPAD discovery attempt (success or exhausted) has completed.
type Readiness struct {
	mu            sync.RWMutex
	listenerBound bool
	wpadSettled   bool
}

// MarkListenerBound records that the listener has bound at least one address.
func (r *Readiness) MarkListenerBound() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listenerBound = true
}

// MarkWpadSettled records that the first WPAD discovery attempt has
// finished, regardless of outcome.
func (r *Readiness) MarkWpadSettled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wpadSettled = true
}

// Ready reports whether both readiness conditions have been met.
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listenerBound && r.wpadSettled
}

// Server is the loopback-only admin HTTP server.
type Server struct {
	httpServer *http.Server
	readiness  *Readiness
	startedAt  time.Time
}

// New builds a Server bound to 127.0.0.1:port. The daemon does not build a
// Server at all when --admin-port is 0 (the default). apiKey, when
// non-empty, requires every admin endpoint to present it; empty leaves the
// admin port open to anything that can reach loopback.
func New(port int, apiKey string, readiness *Readiness) *Server {
	mux := http.NewServeMux()
	s := &Server{readiness: readiness, startedAt: time.Now()}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	auth := api.NewAuthMiddleware(api.AuthConfig{APIKey: apiKey, Logger: logger.Default()})
	handler := recoverMiddleware(httplog.NewResponseLogger(auth.Wrap(mux), logger.Default()))

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving the admin surface until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	logger.Default().Info().Str("addr", s.httpServer.Addr).Msg("admin: listening")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(errors.ErrServerStart, "admin server failed", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.readiness.Ready() {
		_ = api.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
		})
		return
	}
	_ = api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Default().Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("admin: recovered from panic")
				errors.WriteHTTPError(w, errors.InternalError("internal server error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
