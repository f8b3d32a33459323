package network

import (
	"context"
	"net"
	"time"
)

// ipv6RouteCheckAddr is a public IPv6 DNS resolver. A UDP "connect" sends no
// packet; it only asks the kernel for a route.
const ipv6RouteCheckAddr = "[2001:4860:4860::8888]:53"

// IPv6Available reports whether the host has a route to the public IPv6
// internet
func IPv6Available(ctx context.Context) bool {
	d := net.Dialer{Timeout: time.Second}
	conn, err := d.DialContext(ctx, "udp6", ipv6RouteCheckAddr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
