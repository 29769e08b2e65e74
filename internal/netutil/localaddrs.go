package netutil

import (
	"net"
	"net/netip"
)

// LocalAddrs inspects the host's network interfaces and returns its
// own global-unicast IPv4 and IPv6 addresses, for the Safety Filter's
// "equal to the proxy node's detected local IPv4/local IPv6" check
// (spec §4.5) and the Health Responder's identifying address (spec
// §4.3). Either return value is the zero netip.Addr if the host has
// no address of that family; loopback and link-local addresses are
// skipped since those are already covered by their own predicates.
func LocalAddrs() (v4, v6 netip.Addr, err error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, netip.Addr{}, err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			continue
		}
		if addr.Is4() || addr.Is4In6() {
			if !v4.IsValid() {
				v4 = addr.Unmap()
			}
			continue
		}
		if !v6.IsValid() {
			v6 = addr
		}
	}
	return v4, v6, nil
}
