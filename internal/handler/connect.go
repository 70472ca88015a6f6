package handler

import (
	"context"
	"net"
	"strconv"

	logger "github.com/soulteary/logger-kit"

	"github.com/soulteary/wpadproxy/internal/resolver"
)

// handleConnect implements the CONNECT rows of spec.md §4.1's dispatch
// table. Direct dials the target and replies 200 OK itself; Proxy dials
// the chained upstream, forwards a synthesized CONNECT line, and passes
// the upstream's raw response bytes straight through without parsing them
// (the client interprets the handshake reply).
func (h *Handler) handleConnect(ctx context.Context, clientConn net.Conn, host, port string, directive resolver.Directive) {
	switch directive.Kind {
	case resolver.Direct:
		upstreamConn, err := h.dial(ctx, host, port)
		if err != nil {
			logger.Default().Warn().Str("host", host).Err(err).Msg("handler: CONNECT direct dial failed")
			return
		}
		defer upstreamConn.Close()
		if _, err := clientConn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n")); err != nil {
			logger.Default().Info().Err(err).Msg("handler: failed to write CONNECT reply")
			return
		}
		pumpBidirectional(clientConn, upstreamConn, h.metrics)

	default: // resolver.Proxy
		upstreamConn, err := h.dial(ctx, directive.Host, strconv.Itoa(directive.Port))
		if err != nil {
			logger.Default().Warn().Str("proxy", directive.String()).Err(err).Msg("handler: CONNECT chained dial failed")
			return
		}
		defer upstreamConn.Close()

		connectLine := "CONNECT " + dialAddress(host, port) + " HTTP/1.1\r\nhost: " + host + "\r\n\r\n"
		if _, err := upstreamConn.Write([]byte(connectLine)); err != nil {
			logger.Default().Info().Err(err).Msg("handler: failed to write chained CONNECT")
			return
		}
		// The upstream's handshake reply (200/4xx/5xx) is forwarded to the
		// client unparsed; this deviates from strict correctness but is
		// intentional per spec.md §4.1.
		pumpBidirectional(clientConn, upstreamConn, h.metrics)
	}
}
