package netutil

import "net/netip"

var (
	rfc1918Blocks = mustPrefixes("10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16")
	rfc4193Block  = mustPrefix("fc00::/7")
	rfc3879Block  = mustPrefix("fec0::/10")
)

func mustPrefix(s string) netip.Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

func mustPrefixes(ss ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(ss))
	for i, s := range ss {
		out[i] = mustPrefix(s)
	}
	return out
}

// IsLoopback reports whether addr is in the loopback families named by
// spec §4.5: IPv4 127.0.0.0/8 or IPv6 ::1/128.
func IsLoopback(addr netip.Addr) bool {
	return addr.IsLoopback()
}

// IsLinkLocal reports whether addr is link-local unicast, per spec §2
// component E.
func IsLinkLocal(addr netip.Addr) bool {
	return addr.IsLinkLocalUnicast()
}

// IsLANAddress reports whether addr falls in RFC1918, RFC4193 or
// RFC3879 space, per spec §4.5 "LAN-access-denied".
func IsLANAddress(addr netip.Addr) bool {
	if addr.Is4() || addr.Is4In6() {
		a := addr.Unmap()
		for _, p := range rfc1918Blocks {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}
	return rfc4193Block.Contains(addr) || rfc3879Block.Contains(addr)
}
