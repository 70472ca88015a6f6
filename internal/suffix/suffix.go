// Package suffix implements the PublicSuffixResolver collaborator: splitting
// a fully-qualified domain name into its subdomain and registrable-domain
// parts, respecting the public suffix boundary so that WPAD discovery never
// probes a bare public suffix (e.g. "wpad.co.uk").
package suffix

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Resolver splits FQDNs using the public suffix list. The zero value is
// ready to use; it carries no state of its own.
type Resolver struct{}

// NewResolver returns a ready-to-use Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Split divides fqdn into (subdomain, registrable) where registrable is the
// effective TLD plus one label (e.g. "example.co.uk") and subdomain is
// whatever precedes it (e.g. "a.b" for "a.b.example.co.uk"). If fqdn is
// itself a bare registrable domain, subdomain is "". An error is returned
// if fqdn is itself a public suffix (e.g. "co.uk") or otherwise has no
// registrable domain — callers must not derive any WPAD candidate from it.
func (r *Resolver) Split(fqdn string) (subdomain string, registrable string, err error) {
	fqdn = strings.TrimSuffix(strings.ToLower(fqdn), ".")
	if fqdn == "" {
		return "", "", fmt.Errorf("suffix: empty domain")
	}

	registrable, err = publicsuffix.EffectiveTLDPlusOne(fqdn)
	if err != nil {
		return "", "", fmt.Errorf("suffix: %s has no registrable domain: %w", fqdn, err)
	}

	if fqdn == registrable {
		return "", registrable, nil
	}

	subdomain = strings.TrimSuffix(fqdn, "."+registrable)
	return subdomain, registrable, nil
}
