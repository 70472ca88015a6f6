package netinfo

import "context"

// NoopProvider is a Provider with no network backend: empty lists, no
// events. Used as the build-tag-selected implementation on non-Linux
// platforms (see netinfo_other.go) and as the Linux runtime fallback when
// dialing the system D-Bus fails, per spec.md §4.4's "degrade to empty
// results" contract.
type NoopProvider struct{}

// NewNoopProvider returns a ready-to-use NoopProvider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (*NoopProvider) ListActiveDHCPPacURLs(ctx context.Context) []string { return nil }

func (*NoopProvider) ListActiveSearchDomains(ctx context.Context) []string { return nil }

func (*NoopProvider) OnStateChanged(callback func()) {}

func (*NoopProvider) Close() error { return nil }
