// Package resolver implements ProxyResolver (§4.3): a facade over PacEngine
// plus RuntimeOverride precedence (§3) plus PAC result parsing.
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	logger "github.com/soulteary/logger-kit"
)

// Kind distinguishes the two possible ProxyDirective shapes.
type Kind int

const (
	// Direct means the request should be forwarded without an upstream
	// proxy.
	Direct Kind = iota
	// Proxy means the request should be forwarded through Host:Port.
	Proxy
)

// Directive is a single parsed PAC directive.
type Directive struct {
	Kind Kind
	Host string
	Port int
}

// String renders the directive back in PAC result form.
func (d Directive) String() string {
	if d.Kind == Direct {
		return "DIRECT"
	}
	return fmt.Sprintf("PROXY %s:%d", d.Host, d.Port)
}

// DirectiveList is an ordered, non-empty sequence of Directive.
type DirectiveList []Directive

var directiveRe = regexp.MustCompile(`^PROXY\s+(.+):(\d+)$`)

// ParseDirectives splits a PAC result string on ';', trims whitespace, and
// matches each element against "DIRECT" | "PROXY host:port". Any other
// token falls through as Direct, per spec.md §3/§4.1 ("Fallback logic").
// An empty result string produces a single Direct directive.
func ParseDirectives(result string) DirectiveList {
	parts := strings.Split(result, ";")
	list := make(DirectiveList, 0, len(parts))

	for _, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		if token == "DIRECT" {
			list = append(list, Directive{Kind: Direct})
			continue
		}
		if m := directiveRe.FindStringSubmatch(token); m != nil {
			port, err := strconv.Atoi(m[2])
			if err != nil {
				list = append(list, Directive{Kind: Direct})
				continue
			}
			list = append(list, Directive{Kind: Proxy, Host: m[1], Port: port})
			continue
		}
		// Unrecognized token: treated as Direct per the fallback rule.
		list = append(list, Directive{Kind: Direct})
	}

	if len(list) == 0 {
		list = append(list, Directive{Kind: Direct})
	}
	return list
}

// PacEngine is the subset of pacengine.Engine that Resolver depends on.
type PacEngine interface {
	FindProxy(ctx context.Context, url, host string) (string, error)
}

// Resolver is the ProxyResolver facade. ForceProxy is set once at
// construction (CLI --force-proxy); ForceDirect is toggled by WpadController
// for the duration of a WPAD refresh.
type Resolver struct {
	engine     PacEngine
	forceProxy string
	forceDirect atomic.Bool
}

// New constructs a Resolver. forceProxy is the PAC-result-format string from
// --force-proxy; empty means PAC evaluation governs.
func New(engine PacEngine, forceProxy string) *Resolver {
	return &Resolver{engine: engine, forceProxy: forceProxy}
}

// SetForceDirect toggles the transient "use DIRECT while updating" override,
// mutated only by WpadController.
func (r *Resolver) SetForceDirect(on bool) {
	r.forceDirect.Store(on)
}

// Resolve returns the DirectiveList for host, applying RuntimeOverride
// precedence: force_proxy, then force_direct, then PAC evaluation.
func (r *Resolver) Resolve(ctx context.Context, host string) (DirectiveList, error) {
	if r.forceProxy != "" {
		return ParseDirectives(r.forceProxy), nil
	}
	if r.forceDirect.Load() {
		return DirectiveList{{Kind: Direct}}, nil
	}

	result, err := r.engine.FindProxy(ctx, "http://"+host, host)
	if err != nil {
		// PacEvalError: treated as DIRECT for this single request, logged
		// as a warning, per spec.md §7.
		logger.Default().Warn().Str("host", host).Err(err).Msg("PAC evaluation failed, falling back to DIRECT")
		return DirectiveList{{Kind: Direct}}, nil
	}

	return ParseDirectives(result), nil
}
