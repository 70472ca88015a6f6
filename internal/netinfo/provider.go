// Package netinfo implements the NetworkInfoProvider collaborator (§4.4):
// enumerating active network connections for WPAD candidate derivation
// (DHCP option 252 URLs, DNS search domains) and notifying on network
// state changes. Two concrete backends exist: a Linux/NetworkManager
// implementation over D-Bus (netinfo_linux.go) and a no-op fallback for
// every other platform (netinfo_other.go).
package netinfo

import "context"

// Provider is the NetworkInfoProvider interface from spec.md §4.4.
// Connection failures are non-fatal: implementations degrade to empty
// results and a logged warning rather than returning an error that would
// interrupt WpadController.
type Provider interface {
	// ListActiveDHCPPacURLs returns the DHCP option-252 (wpad) value for
	// each currently-active connection that has an IPv4 DHCP lease.
	ListActiveDHCPPacURLs(ctx context.Context) []string

	// ListActiveSearchDomains returns IPv4 search/domain suffixes for each
	// currently-active connection.
	ListActiveSearchDomains(ctx context.Context) []string

	// OnStateChanged registers callback to be invoked whenever network
	// state transitions occur. It may be called from any goroutine;
	// callback must not block.
	OnStateChanged(callback func())

	// Close releases any held resources (e.g. the D-Bus connection).
	Close() error
}
