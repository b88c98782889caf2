// Package privacy masks client identifiers before they reach logs.
package privacy

import (
	"net/netip"
)

const (
	ipv4Prefix = 24
	ipv6Prefix = 48
)

// AnonymizeIP truncates ip to its /24 (IPv4) or /48 (IPv6) network so log lines
// cannot single out a wallet. IPv4-mapped IPv6 addresses are treated as IPv4.
// Returns "unknown" for an empty value and "invalid" when ip does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := ipv6Prefix
	if addr.Is4() {
		bits = ipv4Prefix
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
