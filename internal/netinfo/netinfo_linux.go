//go:build linux

package netinfo

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	logger "github.com/soulteary/logger-kit"
)

const (
	nmBusName        = "org.freedesktop.NetworkManager"
	nmObjectPath     = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmConnIface      = "org.freedesktop.NetworkManager"
	nmActiveIface    = "org.freedesktop.NetworkManager.Connection.Active"
	nmDhcp4Iface     = "org.freedesktop.NetworkManager.DHCP4Config"
	nmIP4Iface       = "org.freedesktop.NetworkManager.IP4Config"
	// noConfigPath is NetworkManager's sentinel object path meaning "no
	// configuration" — emitted for connections such as VPN tunnels that
	// carry no DHCP4/IP4Config of their own.
	noConfigPath = dbus.ObjectPath("/")
)

// NetworkManagerProvider implements Provider over the system D-Bus,
// querying org.freedesktop.NetworkManager per spec.md §6's "Network-info
// provider" contract.
type NetworkManagerProvider struct {
	conn *dbus.Conn

	mu        sync.Mutex
	callbacks []func()
}

// NewNetworkManagerProvider dials the system bus. Connection failures are
// returned so the caller can fall back to the no-op provider; once
// connected, subsequent query failures degrade to empty results instead of
// errors, per spec.md §4.4.
func NewNetworkManagerProvider() (*NetworkManagerProvider, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	p := &NetworkManagerProvider{conn: conn}
	p.watchStateChanged()
	return p, nil
}

func (p *NetworkManagerProvider) Close() error {
	return p.conn.Close()
}

func (p *NetworkManagerProvider) activeConnections() []dbus.ObjectPath {
	obj := p.conn.Object(nmBusName, nmObjectPath)
	variant, err := obj.GetProperty(nmConnIface + ".ActiveConnections")
	if err != nil {
		logger.Default().Warn().Err(err).Msg("netinfo: failed to read NetworkManager.ActiveConnections")
		return nil
	}
	paths, ok := variant.Value().([]dbus.ObjectPath)
	if !ok {
		return nil
	}
	return paths
}

func (p *NetworkManagerProvider) objectPathProperty(path dbus.ObjectPath, iface, prop string) (dbus.ObjectPath, bool) {
	obj := p.conn.Object(nmBusName, path)
	variant, err := obj.GetProperty(iface + "." + prop)
	if err != nil {
		return "", false
	}
	op, ok := variant.Value().(dbus.ObjectPath)
	return op, ok
}

// ListActiveDHCPPacURLs implements Provider.
func (p *NetworkManagerProvider) ListActiveDHCPPacURLs(ctx context.Context) []string {
	var urls []string
	for _, conn := range p.activeConnections() {
		dhcpPath, ok := p.objectPathProperty(conn, nmActiveIface, "Dhcp4Config")
		if !ok || dhcpPath == noConfigPath || dhcpPath == "" {
			continue
		}
		obj := p.conn.Object(nmBusName, dhcpPath)
		variant, err := obj.GetProperty(nmDhcp4Iface + ".Options")
		if err != nil {
			logger.Default().Warn().Err(err).Msg("netinfo: failed to read DHCP4Config.Options")
			continue
		}
		options, ok := variant.Value().(map[string]dbus.Variant)
		if !ok {
			continue
		}
		if wpad, ok := options["wpad"]; ok {
			if s, ok := wpad.Value().(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
	}
	return urls
}

// ListActiveSearchDomains implements Provider.
func (p *NetworkManagerProvider) ListActiveSearchDomains(ctx context.Context) []string {
	var domains []string
	for _, conn := range p.activeConnections() {
		ip4Path, ok := p.objectPathProperty(conn, nmActiveIface, "Ip4Config")
		if !ok || ip4Path == noConfigPath || ip4Path == "" {
			continue
		}
		obj := p.conn.Object(nmBusName, ip4Path)
		variant, err := obj.GetProperty(nmIP4Iface + ".Domains")
		if err != nil {
			logger.Default().Warn().Err(err).Msg("netinfo: failed to read IP4Config.Domains")
			continue
		}
		if ds, ok := variant.Value().([]string); ok {
			domains = append(domains, ds...)
		}
	}
	return domains
}

// OnStateChanged implements Provider.
func (p *NetworkManagerProvider) OnStateChanged(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, callback)
}

func (p *NetworkManagerProvider) watchStateChanged() {
	matchRule := "type='signal',interface='" + nmConnIface + "',member='StateChanged'"
	if err := p.conn.AddMatchSignal(dbus.WithMatchInterface(nmConnIface)); err != nil {
		logger.Default().Warn().Err(err).Str("rule", matchRule).Msg("netinfo: failed to subscribe to StateChanged")
		return
	}

	ch := make(chan *dbus.Signal, 16)
	p.conn.Signal(ch)

	go func() {
		for sig := range ch {
			if sig.Name != nmConnIface+".StateChanged" {
				continue
			}
			p.mu.Lock()
			callbacks := append([]func(){}, p.callbacks...)
			p.mu.Unlock()
			for _, cb := range callbacks {
				cb()
			}
		}
	}()
}
