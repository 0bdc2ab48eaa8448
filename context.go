package goToken

import (
	"context"
	"net"
	"net/netip"
)

type clientIPKey struct{}

// WithClientIP records the caller's address on ctx for login throttling and
// audit events. A host:port pair is reduced to its host and IPv4-mapped
// IPv6 addresses are unmapped, so one client always yields one throttle key.
// Values that do not parse as an IP are kept verbatim.
func WithClientIP(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, canonicalIP(addr))
}

// ClientIP returns the address stored by [WithClientIP], or "".
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func canonicalIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return addr
	}
	return ip.Unmap().WithZone("").String()
}
