package handler

import (
	"net/http"
	"strconv"
	"strings"

	wpaderrors "github.com/soulteary/wpadproxy/internal/errors"
)

// targetOf determines (host, port) for req per spec.md §4.1: for CONNECT,
// the request-target is "host:port" split on the rightmost colon with IPv6
// brackets preserved; for other methods, host/port come from the
// absolute-form URI authority, defaulting to port 80.
func targetOf(req *http.Request) (host, port string, err error) {
	if req.Method == http.MethodConnect {
		return splitHostPort(req.RequestURI)
	}
	return splitAuthority(req.URL.Host)
}

// splitHostPort splits "host:port" on the rightmost colon, preserving
// bracketed IPv6 literals (e.g. "[::1]:443" -> host="[::1]", port="443").
// Returns an error if no port is present.
func splitHostPort(hostport string) (host, port string, err error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return "", "", wpaderrors.New(wpaderrors.ErrRequestInvalid, "CONNECT target missing port")
	}
	host = hostport[:idx]
	port = hostport[idx+1:]
	if port == "" {
		return "", "", wpaderrors.New(wpaderrors.ErrRequestInvalid, "CONNECT target missing port")
	}
	if _, convErr := strconv.Atoi(port); convErr != nil {
		return "", "", wpaderrors.Wrap(wpaderrors.ErrRequestInvalid, "CONNECT target has non-numeric port", convErr)
	}
	return host, port, nil
}

// splitAuthority splits an absolute-form URI authority into host/port,
// defaulting to port 80 when absent (HTTP-only, per spec.md §4.1: browsers
// always CONNECT for HTTPS so absolute-form HTTPS is not expected).
func splitAuthority(authority string) (host, port string, err error) {
	if authority == "" {
		return "", "", wpaderrors.New(wpaderrors.ErrRequestInvalid, "request has no target authority")
	}
	if idx := strings.LastIndex(authority, ":"); idx >= 0 && !strings.Contains(authority[idx+1:], "]") {
		candidate := authority[idx+1:]
		if _, convErr := strconv.Atoi(candidate); convErr == nil {
			return authority[:idx], candidate, nil
		}
	}
	return authority, "80", nil
}

// relativeTarget reconstructs the path+query+fragment sent on the outgoing
// request line to a Direct upstream, falling back to "/" when empty, per
// spec.md §4.1.
func relativeTarget(req *http.Request) string {
	target := req.URL.RequestURI()
	if target == "" {
		return "/"
	}
	return target
}
