// Command wpadproxy is a local HTTP forward proxy that discovers its
// upstream proxy configuration via WPAD (DHCP/DNS-derived PAC URLs) and
// evaluates FindProxyForURL for every request.
package main

import (
	"log"

	"github.com/soulteary/wpadproxy/cli"
	"github.com/soulteary/wpadproxy/internal/config"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("wpadproxy: %v", err)
	}

	cli.Daemon(cfg)
}
