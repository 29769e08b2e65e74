// Package envelope implements the Request Envelope (spec §4.1):
// header lowercasing and trusted-proxy-gated reassignment of client
// IP, host, scheme, and port from forwarding headers.
package envelope

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/mfdlabs/rbx-proxy/internal/httpnorm"
	"github.com/mfdlabs/rbx-proxy/internal/netutil"
)

// Config carries the envelope's behavior flags and header names, all
// individually toggleable per spec §4.1 "each individually gated by
// its own flag".
type Config struct {
	TrustedProxies netutil.CIDRSet

	RewriteClientIP bool
	RewriteHost     bool
	RewriteScheme   bool
	RewritePort     bool

	ForwardedForHeader   string
	ForwardedHostHeader  string
	ForwardedProtoHeader string
	ForwardedPortHeader  string

	CloudflareAware  bool
	CloudflareHeader string
	CloudflareCIDRs  netutil.CIDRSet
}

// Result is the normalized request-identity tuple produced by
// Normalize (spec §3 "Request Context").
type Result struct {
	ClientIP string
	Host     string
	Scheme   string
	Port     int
}

// Normalize lowercases req's header names and computes the effective
// client IP / host / scheme / port, consulting forwarding headers only
// when peerAddr matches cfg.TrustedProxies (spec §4.1). Missing or
// empty forwarded values leave the corresponding field at its
// transport default, per spec §4.1 "Missing or empty forwarded values
// leave the corresponding field at the transport default."
func Normalize(req *http.Request, cfg Config, peerAddr netip.Addr, defaultHost, defaultScheme string, defaultPort int) Result {
	httpnorm.Lowercase(req.Header)

	result := Result{
		ClientIP: peerAddr.String(),
		Host:     defaultHost,
		Scheme:   defaultScheme,
		Port:     defaultPort,
	}

	if !cfg.TrustedProxies.Contains(peerAddr) {
		return result
	}

	if cfg.RewriteClientIP {
		if ip := forwardedClientIP(req, cfg, peerAddr); ip != "" {
			result.ClientIP = ip
		}
	}
	if cfg.RewriteHost {
		if host := firstHeaderValue(req, cfg.ForwardedHostHeader); host != "" {
			result.Host = host
		}
	}
	if cfg.RewriteScheme {
		if scheme := firstHeaderValue(req, cfg.ForwardedProtoHeader); scheme != "" {
			result.Scheme = scheme
		}
	}
	if cfg.RewritePort {
		if raw := firstHeaderValue(req, cfg.ForwardedPortHeader); raw != "" {
			if port, err := strconv.Atoi(raw); err == nil {
				result.Port = port
			}
		}
	}

	return result
}

// forwardedClientIP resolves the client IP from forwarding headers,
// preferring the Cloudflare-specific header when cfg.CloudflareAware
// is set and the peer is a recognized Cloudflare edge address (spec
// §4.1 "If Cloudflare support is enabled and peer matches the
// Cloudflare IP set, a Cloudflare-specific header is consulted
// first").
func forwardedClientIP(req *http.Request, cfg Config, peerAddr netip.Addr) string {
	if cfg.CloudflareAware && cfg.CloudflareCIDRs.Contains(peerAddr) {
		if ip := firstHeaderValue(req, cfg.CloudflareHeader); ip != "" {
			return ip
		}
	}
	raw := firstHeaderValue(req, cfg.ForwardedForHeader)
	if raw == "" {
		return ""
	}
	first := strings.SplitN(raw, ",", 2)[0]
	return strings.TrimSpace(first)
}

func firstHeaderValue(req *http.Request, header string) string {
	if header == "" {
		return ""
	}
	return strings.TrimSpace(req.Header.Get(strings.ToLower(header)))
}
