package forward

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// hopHeaders are stripped from the upstream response before it is
// relayed downstream (spec §4.7 step 4).
var hopHeaders = []string{"server", "date", "connection", "x-powered-by"}

// bom is the UTF-8 byte-order-mark stripped from the decoded body
// before content-length is recomputed (spec §4.7 step 6).
var bom = []byte{0xEF, 0xBB, 0xBF}

// TransformResponse runs steps 1 and 3-6 of the response transformation
// pipeline of spec §4.7 against an upstream response before it is
// relayed to the downstream client; the CORS step (2) is not part of
// it and is applied separately by ApplyCORS. It mutates header in place and
// returns the (possibly BOM-stripped) body with content-length already
// set to match.
func TransformResponse(header http.Header, body []byte, originalHost, rewrittenHost string, elapsed time.Duration) []byte {
	rewriteLocation(header, originalHost, rewrittenHost)
	rewriteSetCookieDomains(header, originalHost, rewrittenHost)
	stripHopHeaders(header)
	header.Set("x-downstream-timing", strconv.FormatInt(elapsed.Milliseconds(), 10)+"ms")

	body = bytes.TrimPrefix(body, bom)
	header.Set("content-length", strconv.Itoa(len(body)))

	return body
}

// rewriteLocation implements spec §4.7 step 1: if the response carries
// a location header pointing at the rewritten host, substitute the
// original inbound host back so client-visible redirects don't leak
// the internal hostname.
func rewriteLocation(header http.Header, originalHost, rewrittenHost string) {
	loc := header.Get("location")
	if loc == "" {
		return
	}
	header.Set("location", replaceHost(loc, rewrittenHost, originalHost))
}

// replaceHost replaces every occurrence of from in s with to, wherever
// it appears (host component, path or query alike).
func replaceHost(s, from, to string) string {
	if from == "" || from == to {
		return s
	}
	return strings.ReplaceAll(s, from, to)
}

// rewriteSetCookieDomains implements spec §4.7 step 3: for each
// set-cookie, if its domain attribute equals (or is a subdomain of)
// the rewritten host's base (registrable) domain, replace the whole
// value with the original inbound host's own base domain, preserving
// a leading dot, so a cookie the upstream scoped to its production
// apex instead ends up scoped to the apex of the hostname the client
// actually talked to (spec §8 scenario 5: inbound
// www.gametest1.example.com, upstream Domain=.example.com, rewritten
// to domain=.example.com -- not the full inbound host).
//
// Both base-domain extractions use golang.org/x/net/publicsuffix
// instead of naive "last two labels" slicing, since either host can
// carry extra labels under some apex configurations (spec §4.7.1
// supplemental detail).
func rewriteSetCookieDomains(header http.Header, originalHost, rewrittenHost string) {
	cookies, ok := header["Set-Cookie"]
	if !ok {
		return
	}

	rewrittenBase, err := publicsuffix.EffectiveTLDPlusOne(stripPort(rewrittenHost))
	if err != nil || rewrittenBase == "" {
		return
	}
	originalBase, err := publicsuffix.EffectiveTLDPlusOne(stripPort(originalHost))
	if err != nil || originalBase == "" {
		return
	}

	for i, c := range cookies {
		cookies[i] = rewriteCookieDomainAttr(c, rewrittenBase, originalBase)
	}
	header["Set-Cookie"] = cookies
}

func rewriteCookieDomainAttr(cookie, from, to string) string {
	const attr = "domain="
	lower := strings.ToLower(cookie)
	idx := strings.Index(lower, attr)
	if idx == -1 {
		return cookie
	}
	valueStart := idx + len(attr)
	end := strings.IndexByte(cookie[valueStart:], ';')
	if end == -1 {
		end = len(cookie) - valueStart
	}
	value := cookie[valueStart : valueStart+end]

	leadingDot := strings.HasPrefix(value, ".")
	bare := strings.TrimPrefix(value, ".")
	if bare != from && !strings.HasSuffix(bare, "."+from) {
		return cookie
	}
	replaced := to
	if leadingDot {
		replaced = "." + replaced
	}

	return cookie[:valueStart] + replaced + cookie[valueStart+end:]
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 {
		return host[:i]
	}
	return host
}

func stripHopHeaders(header http.Header) {
	for _, h := range hopHeaders {
		header.Del(h)
	}
}
