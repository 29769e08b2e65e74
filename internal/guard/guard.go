// Package guard implements the Source Guard (spec §4.2): a CIDR
// allowlist check on the client IP followed by a crawler user-agent
// check, either of which may short-circuit the pipeline.
package guard

import (
	"net/netip"
	"regexp"

	"github.com/mfdlabs/rbx-proxy/internal/netutil"
)

// RejectionMode selects how a guard rejection is carried out, per spec
// §4.2: "Rejection form is configurable: either respond 403 with a
// no-cache HTML body, or destroy the socket without responding."
type RejectionMode int

const (
	RejectWithHTTP403 RejectionMode = iota
	RejectByAbortingConnection
)

// Config carries the guard's toggles.
type Config struct {
	CIDRCheckEnabled  bool
	AllowedCIDRs      netutil.CIDRSet
	CIDRRejectionMode RejectionMode

	CrawlerCheckEnabled  bool
	CrawlerRejectionMode RejectionMode
}

// Verdict is the result of running the guard against one request.
type Verdict struct {
	Rejected bool
	Reason   string
	Mode     RejectionMode
}

var allowVerdict = Verdict{}

// crawlerPattern is the fixed crawler regex of spec §4.2. It matches
// generic crawler keywords (bot, crawl, spider, slurp), named bots, and
// common HTTP-client library user-agent signatures, case-insensitively.
// It has no browser-like substring entries, so an ordinary browser
// user-agent such as "Mozilla/5.0 ..." does not match.
var crawlerPattern = regexp.MustCompile(`(?i)(bot|crawl|spider|slurp|facebookexternalhit|googlebot|bingbot|yandexbot|duckduckbot|baiduspider|curl|wget|python-requests|python-urllib|go-http-client|libwww-perl|httpclient|okhttp|java/|postmanruntime|insomnia|scrapy)`)

// Check runs the CIDR check and then the crawler check, in order,
// short-circuiting on the first rejection (spec §4.2: "Both checks
// run in order and short-circuit.").
func Check(cfg Config, clientIP netip.Addr, userAgent string) Verdict {
	if cfg.CIDRCheckEnabled && !cfg.AllowedCIDRs.Allows(clientIP) {
		return Verdict{Rejected: true, Reason: "cidr_denied", Mode: cfg.CIDRRejectionMode}
	}
	if cfg.CrawlerCheckEnabled && crawlerPattern.MatchString(userAgent) {
		return Verdict{Rejected: true, Reason: "crawler_denied", Mode: cfg.CrawlerRejectionMode}
	}
	return allowVerdict
}
