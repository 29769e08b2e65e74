package netutil

import (
	"fmt"
	"net/netip"
	"strings"
)

// CIDRSet is an ordered pair of CIDR allow/deny lists, one per IP
// family, used by the trusted-proxy set and the source-guard ACL
// (spec §3 "Trusted Proxy Set" / "Allow/Deny ACL").
//
// An empty list for a family means "allow all" for that family under
// Allows, per the boundary behavior in spec §8; Contains, by contrast,
// reports false for every address of a family whose list is empty.
type CIDRSet struct {
	v4 []netip.Prefix
	v6 []netip.Prefix
}

// ParseCIDRList parses a comma- or whitespace-separated list of CIDR
// strings into a CIDRSet, routing each entry to the v4 or v6 bucket
// by its address family.
func ParseCIDRList(raw string) (CIDRSet, error) {
	var set CIDRSet
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return set, nil
	}
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(field)
		if err != nil {
			// bare address, no mask: treat as a /32 or /128 host route
			addr, aerr := netip.ParseAddr(field)
			if aerr != nil {
				return CIDRSet{}, fmt.Errorf("netutil: invalid CIDR %q: %w", field, err)
			}
			bits := 32
			if addr.Is6() && !addr.Is4In6() {
				bits = 128
			}
			prefix = netip.PrefixFrom(addr, bits)
		}
		if prefix.Addr().Is4() {
			set.v4 = append(set.v4, prefix)
		} else {
			set.v6 = append(set.v6, prefix)
		}
	}
	return set, nil
}

// Empty reports whether the set has no entries for the family of addr.
func (s CIDRSet) Empty(addr netip.Addr) bool {
	if addr.Is4() || addr.Is4In6() {
		return len(s.v4) == 0
	}
	return len(s.v6) == 0
}

// Contains reports whether addr falls within any entry of the set's
// family. For a flat allow-list, "longest-prefix match" (spec §3)
// degenerates to "matches some entry" -- see DESIGN.md for this Open
// Question resolution.
func (s CIDRSet) Contains(addr netip.Addr) bool {
	list := s.v6
	if addr.Is4() || addr.Is4In6() {
		list = s.v4
		addr = addr.Unmap()
	}
	for _, p := range list {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Allows implements the CIDR-check policy of spec §4.2: if the
// family's list is empty, every address of that family is allowed;
// otherwise the address must match some entry.
func (s CIDRSet) Allows(addr netip.Addr) bool {
	if s.Empty(addr) {
		return true
	}
	return s.Contains(addr)
}

// Merge combines sets into a single CIDRSet, concatenating each
// family's prefix list. Used by cmd/rbxproxy to join the separately
// registered *_V4/*_V6 settings keys (spec §6) back into the one
// CIDRSet every component's Config field expects.
func Merge(sets ...CIDRSet) CIDRSet {
	var out CIDRSet
	for _, s := range sets {
		out.v4 = append(out.v4, s.v4...)
		out.v6 = append(out.v6, s.v6...)
	}
	return out
}
