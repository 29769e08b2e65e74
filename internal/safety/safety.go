// Package safety implements the Safety Filter (spec §4.5): it rejects
// resolved addresses that are loopback, the proxy's own address, or
// (optionally) private LAN space, guarding against SSRF-style pivots
// through the proxy onto its own host or network.
package safety

import (
	"net/netip"
	"sync"

	"github.com/mfdlabs/rbx-proxy/internal/netutil"
)

// PublicIPFetcher resolves the proxy node's public IPv4 address,
// lazily and once per process (spec §4.5: "fetched lazily once per
// process via the configured public-IP discovery service").
type PublicIPFetcher func() (netip.Addr, error)

// Filter holds the addresses the Safety Filter compares against, plus
// a write-once memoized public-IP fetch (spec §5 "Public IP —
// write-once memoized; safe double-init permitted").
type Filter struct {
	LocalIPv4       netip.Addr
	LocalIPv6       netip.Addr
	LANAccessDenied bool

	fetchPublicIP PublicIPFetcher
	once          sync.Once
	publicIPv4    netip.Addr
	publicIPErr   error
}

// NewFilter constructs a Filter, deferring the public-IP fetch until
// first needed.
func NewFilter(localV4, localV6 netip.Addr, lanAccessDenied bool, fetch PublicIPFetcher) *Filter {
	return &Filter{
		LocalIPv4:       localV4,
		LocalIPv6:       localV6,
		LANAccessDenied: lanAccessDenied,
		fetchPublicIP:   fetch,
	}
}

func (f *Filter) publicIP() (netip.Addr, error) {
	f.once.Do(func() {
		if f.fetchPublicIP == nil {
			return
		}
		f.publicIPv4, f.publicIPErr = f.fetchPublicIP()
	})
	return f.publicIPv4, f.publicIPErr
}

// Verdict reports whether an address is unsafe, and why.
type Verdict struct {
	Unsafe bool
	Reason string
}

var safeVerdict = Verdict{}

// checkOne applies the rejection predicates of spec §4.5 to a single
// address.
func (f *Filter) checkOne(addr netip.Addr) Verdict {
	if netutil.IsLoopback(addr) {
		return Verdict{Unsafe: true, Reason: "loopback"}
	}
	if netutil.IsLinkLocal(addr) {
		return Verdict{Unsafe: true, Reason: "link_local"}
	}
	if f.LocalIPv4.IsValid() && addr == f.LocalIPv4 {
		return Verdict{Unsafe: true, Reason: "proxy_local_ipv4"}
	}
	if f.LocalIPv6.IsValid() && addr == f.LocalIPv6 {
		return Verdict{Unsafe: true, Reason: "proxy_local_ipv6"}
	}
	if pubIP, err := f.publicIP(); err == nil && pubIP.IsValid() && addr == pubIP {
		return Verdict{Unsafe: true, Reason: "proxy_public_ip"}
	}
	if f.LANAccessDenied && netutil.IsLANAddress(addr) {
		return Verdict{Unsafe: true, Reason: "lan_address"}
	}
	return safeVerdict
}

// Check applies the filter to both the pre-resolution host address (if
// it happens to parse as a literal IP; otherwise callers pass an
// invalid netip.Addr and this predicate is skipped) and every resolved
// upstream address, per spec §4.5: "Reject ... if any of the following
// holds for either the pre-resolution host or the resolved address."
func (f *Filter) Check(hostLiteral netip.Addr, resolved []netip.Addr) Verdict {
	if hostLiteral.IsValid() {
		if v := f.checkOne(hostLiteral); v.Unsafe {
			return v
		}
	}
	for _, addr := range resolved {
		if v := f.checkOne(addr); v.Unsafe {
			return v
		}
	}
	return safeVerdict
}
