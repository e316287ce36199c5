package websearch

import (
	"fmt"
	"net"
	"net/url"
)

// GuardURL rejects URLs that must never be fetched server-side: non-http(s)
// schemes and IP-literal hosts in private, loopback, link-local, unspecified,
// multicast or otherwise reserved ranges. Hostnames pass through; DNS-based
// SSRF is not fully mitigated here.
func GuardURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme %q", parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() ||
		isReserved(ip) {
		return fmt.Errorf("blocked host %q", host)
	}
	return nil
}

// isReserved covers ranges net.IP has no predicate for.
func isReserved(ip net.IP) bool {
	for _, cidr := range reservedBlocks {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

var reservedBlocks = mustParseCIDRs(
	"100.64.0.0/10",   // carrier-grade NAT
	"192.0.0.0/24",    // IETF protocol assignments
	"192.0.2.0/24",    // TEST-NET-1
	"198.18.0.0/15",   // benchmarking
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24",  // TEST-NET-3
	"240.0.0.0/4",     // reserved for future use
	"100::/64",        // IPv6 discard
	"2001:db8::/32",   // IPv6 documentation
)

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, cidr, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		out = append(out, cidr)
	}
	return out
}
