package handler

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"

	logger "github.com/soulteary/logger-kit"

	"github.com/soulteary/wpadproxy/internal/resolver"
)

// handleForward implements the non-CONNECT rows of spec.md §4.1's dispatch
// table: Direct writes the rewritten relative-form request line to the
// target; Proxy writes the original absolute-form request line to the
// chained upstream. Either way the upstream's response is piped back
// verbatim.
func (h *Handler) handleForward(ctx context.Context, clientConn net.Conn, req *http.Request, host, port string, directive resolver.Directive) {
	if req.Host == "" {
		req.Host = host
	}

	var (
		upstreamConn net.Conn
		err          error
		write        func(io.Writer) error
	)

	switch directive.Kind {
	case resolver.Direct:
		upstreamConn, err = h.dial(ctx, host, port)
		write = req.Write // relative-form request line
	default: // resolver.Proxy
		upstreamConn, err = h.dial(ctx, directive.Host, strconv.Itoa(directive.Port))
		write = req.WriteProxy // preserves the original absolute-form request line
	}
	if err != nil {
		logger.Default().Warn().Str("directive", directive.String()).Err(err).Msg("handler: upstream dial failed")
		writeSimpleStatus(clientConn, http.StatusBadGateway)
		return
	}
	defer upstreamConn.Close()

	if err := write(upstreamConn); err != nil {
		logger.Default().Warn().Err(err).Msg("handler: failed to write request upstream")
		return
	}

	if _, err := io.Copy(clientConn, upstreamConn); err != nil {
		logger.Default().Info().Err(err).Msg("handler: response copy ended")
	}
}
