package handler

import (
	"io"
	"net"
	"sync"

	"github.com/soulteary/wpadproxy/internal/metrics"
)

// pumpBidirectional shuttles bytes between client and upstream until one
// side closes; reaching EOF on either reader half-closes the write side of
// the other connection (when supported) so the remaining direction can
// still drain, per spec.md §4.1's tunneling contract. Returns once both
// directions have finished. m may be nil.
func pumpBidirectional(client, upstream net.Conn, m *metrics.Metrics) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		n := copyAndHalfClose(client, upstream)
		m.RecordTunnelBytes("upstream_to_client", n)
	}()
	go func() {
		defer wg.Done()
		n := copyAndHalfClose(upstream, client)
		m.RecordTunnelBytes("client_to_upstream", n)
	}()

	wg.Wait()
}

// copyAndHalfClose copies from src to dst until EOF, then half-closes dst's
// write side if it supports CloseWrite (e.g. *net.TCPConn) so the peer
// observes end-of-stream without severing the still-active opposite
// direction. Returns the number of bytes copied.
func copyAndHalfClose(dst, src net.Conn) int64 {
	n, _ := io.Copy(dst, src)
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	return n
}
