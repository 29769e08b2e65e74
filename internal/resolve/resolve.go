// Package resolve implements the Hostname Resolver (spec §4.4): strip
// port, apply the test→prod hostname rewrite, and resolve A/AAAA
// records for the rewritten host.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
)

// ErrMissingHost is returned when the request carries no host header,
// per spec §4.4 "Missing host header → 400".
var ErrMissingHost = errors.New("resolve: host header is missing")

// Rewrite is the Hostname Rewrite Rule of spec §3: a regex on the host
// whose first capture group, joined with ProductionApex as
// "<capture>.<apex>", forms the canonical hostname.
type Rewrite struct {
	Pattern        *regexp.Regexp
	ProductionApex string
}

// NewRewrite compiles pattern into a Rewrite targeting apex.
func NewRewrite(pattern, apex string) (Rewrite, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rewrite{}, fmt.Errorf("resolve: invalid rewrite pattern %q: %w", pattern, err)
	}
	return Rewrite{Pattern: re, ProductionApex: apex}, nil
}

// Apply runs the rewrite regex against host, per spec §4.4 step 2:
// "if it matches and yields a non-empty capture group, replace the
// host with <capture>.<production-apex>. If no rewrite matches, the
// original host is kept."
func (r Rewrite) Apply(host string) (rewritten string, matched bool) {
	if r.Pattern == nil {
		return host, false
	}
	m := r.Pattern.FindStringSubmatch(host)
	if m == nil || len(m) < 2 || m[1] == "" {
		return host, false
	}
	return m[1] + "." + r.ProductionApex, true
}

// Result is the outcome of resolving one request's host.
type Result struct {
	OriginalHost  string
	RewrittenHost string
	Addresses     []netip.Addr
}

// Resolver looks up A/AAAA records via net.Resolver, per spec §4.4
// step 3: "Caches and TTL are the responsibility of the DNS client;
// the resolver does not cache."
type Resolver struct {
	DNS       *net.Resolver
	StripPort bool
	Rewrite   Rewrite
}

// Resolve strips the port (if configured), applies the rewrite, and
// performs the DNS lookup, per spec §4.4.
func (r Resolver) Resolve(ctx context.Context, hostHeader string) (Result, error) {
	if hostHeader == "" {
		return Result{}, ErrMissingHost
	}

	host := hostHeader
	if r.StripPort {
		if h, _, err := net.SplitHostPort(hostHeader); err == nil {
			host = h
		} else {
			host = strings.TrimSuffix(hostHeader, ":")
		}
	}

	rewritten, _ := r.Rewrite.Apply(host)

	resolver := r.DNS
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ipAddrs, err := resolver.LookupIPAddr(ctx, rewritten)
	if err != nil {
		return Result{}, fmt.Errorf("resolve: %s could not be resolved: %w", rewritten, err)
	}
	if len(ipAddrs) == 0 {
		return Result{}, fmt.Errorf("resolve: %s could not be resolved: no addresses returned", rewritten)
	}

	addrs := make([]netip.Addr, 0, len(ipAddrs))
	for _, a := range ipAddrs {
		if addr, ok := netip.AddrFromSlice(a.IP); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}

	return Result{
		OriginalHost:  host,
		RewrittenHost: rewritten,
		Addresses:     addrs,
	}, nil
}
