// Package handler implements ConnectionHandler (§4.1): one HTTP/1.x
// conversation per client TCP connection, dispatched against a resolved
// ProxyDirective and either forwarded or tunneled upstream.
package handler

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	logger "github.com/soulteary/logger-kit"
	tracing "github.com/soulteary/tracing-kit"

	wpaderrors "github.com/soulteary/wpadproxy/internal/errors"
	"github.com/soulteary/wpadproxy/internal/metrics"
	"github.com/soulteary/wpadproxy/internal/proxy"
	"github.com/soulteary/wpadproxy/internal/resolver"
)

// Resolver is the subset of resolver.Resolver a Handler depends on.
type Resolver interface {
	Resolve(ctx context.Context, host string) (resolver.DirectiveList, error)
}

// DefaultDialTimeout bounds how long dialing an upstream (direct target or
// chained proxy) may take before the connection is abandoned.
const DefaultDialTimeout = 15 * time.Second

// Handler dispatches accepted client connections. One Handler is shared by
// every connection; Listener calls Handle in a fresh goroutine per
// connection, and all per-connection state lives in that call.
type Handler struct {
	resolver    Resolver
	dialer      *proxy.RetryingDialer
	dialTimeout time.Duration
	metrics     *metrics.Metrics
}

// New constructs a Handler bound to resolver. m may be nil, in which case
// metrics recording is a no-op (metrics.Metrics methods are nil-safe).
func New(resolver Resolver, m *metrics.Metrics) *Handler {
	return &Handler{
		resolver:    resolver,
		dialer:      proxy.NewRetryingDialer(),
		dialTimeout: DefaultDialTimeout,
		metrics:     m,
	}
}

// Handle drives one client TCP connection end-to-end: parses exactly one
// request, resolves its directive, dispatches to the Direct/Proxy x
// CONNECT/non-CONNECT table from spec.md §4.1, and returns once the
// session (or tunnel) ends. Handle closes clientConn before it returns.
func (h *Handler) Handle(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()

	h.metrics.IncrementActiveConnections()
	defer h.metrics.DecrementActiveConnections()

	spanCtx, span := tracing.StartSpan(ctx, "handler.connection")
	defer span.End()
	tracing.SetSpanAttributesFromMap(span, map[string]interface{}{
		"net.peer.addr": clientConn.RemoteAddr().String(),
	})

	reader := bufio.NewReader(clientConn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		logger.Default().Warn().Err(err).Msg("handler: malformed request")
		writeSimpleStatus(clientConn, http.StatusBadRequest)
		return
	}
	h.metrics.RecordConnectionAccepted(req.Method)

	host, port, err := targetOf(req)
	if err != nil {
		logger.Default().Warn().Err(err).Msg("handler: failed to determine request target")
		writeSimpleStatus(clientConn, http.StatusBadRequest)
		return
	}

	tracing.SetSpanAttributesFromMap(span, map[string]interface{}{
		"http.method": req.Method,
		"net.peer.name": host,
		"net.peer.port": port,
	})

	directives, err := h.resolver.Resolve(spanCtx, host)
	if err != nil {
		// Resolve itself never returns an error in this implementation (PAC
		// evaluation failures degrade to DIRECT internally), but handle it
		// defensively per spec.md §7's "never crash the listener" rule.
		logger.Default().Warn().Err(err).Msg("handler: directive resolution failed, falling back to DIRECT")
		directives = resolver.DirectiveList{{Kind: resolver.Direct}}
	}
	directive := directives[0]
	h.metrics.RecordDirective(directiveKindLabel(directive.Kind))

	if req.Method == http.MethodConnect {
		h.handleConnect(spanCtx, clientConn, host, port, directive)
		return
	}
	h.handleForward(spanCtx, clientConn, req, host, port, directive)
}

// directiveKindLabel renders a resolver.Kind as a low-cardinality metric
// label ("direct" or "proxy"), leaving the chained upstream's host:port out
// of the series to avoid unbounded label cardinality.
func directiveKindLabel(kind resolver.Kind) string {
	if kind == resolver.Direct {
		return "direct"
	}
	return "proxy"
}

func writeSimpleStatus(conn net.Conn, status int) {
	_, _ = io.WriteString(conn, "HTTP/1.1 "+strconv.Itoa(status)+" "+http.StatusText(status)+"\r\n\r\n")
}

// dial dials host:port, retrying transient failures (per http-kit's
// retryable-error classification) and recording the attempt as a trace
// span, within an overall dialTimeout deadline.
func (h *Handler) dial(ctx context.Context, host, port string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, h.dialTimeout)
	defer cancel()

	conn, err := h.dialer.Dial(dialCtx, "handler.upstream.dial", func(attemptCtx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(attemptCtx, "tcp", dialAddress(host, port))
	})
	if err != nil {
		return nil, wpaderrors.Wrap(wpaderrors.ErrUpstreamDialFail, "failed to dial upstream", err)
	}
	return conn, nil
}

// dialAddress joins host and port into a dialable address. host may already
// be a bracketed IPv6 literal (e.g. "[::1]"), preserved verbatim per
// spec.md §4.1, so it is not passed through net.JoinHostPort a second time.
func dialAddress(host, port string) string {
	if strings.HasPrefix(host, "[") {
		return host + ":" + port
	}
	return net.JoinHostPort(host, port)
}
