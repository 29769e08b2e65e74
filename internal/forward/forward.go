// Package forward implements the Forwarder (spec §4.7): it builds the
// upstream request, invokes it with a bounded timeout and no redirect
// following, then runs the response transformation pipeline (location
// rewriting, CORS rewriting, cookie-domain rewriting, hop-header
// stripping).
package forward

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Config carries the Forwarder's tunables (spec §6: "Forwarder:
// timeout ms, max body bytes").
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
}

// NewTransport builds the dedicated *http.Transport the Forwarder's
// http.Client uses, grounded on the teacher's explicit transport
// construction in caddyhttp/proxy/reverseproxy.go. DisableCompression
// is mandatory: the forwarder recomputes content-length from the
// decoded body (spec §4.7 step 6) and cannot let the transport
// transparently gunzip a body out from under that computation.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}
}

// NewClient builds the Forwarder's http.Client: redirects are never
// followed (spec §4.7 "max_redirects = 0"), and the overall call is
// bounded by cfg.Timeout.
func NewClient(cfg Config) *http.Client {
	return &http.Client{
		Transport: NewTransport(),
		Timeout:   cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// BuildUpstreamRequest constructs the outgoing request per spec §4.7:
// "<scheme>://<rewritten-host>:<port><path?query>", forwarding all
// inbound headers with the documented overrides, and bounding the body
// to cfg.MaxBodyBytes.
func BuildUpstreamRequest(
	ctx context.Context,
	inbound *http.Request,
	cfg Config,
	scheme, rewrittenHost string,
	port int,
	originalClientIP, originalHost, originalScheme string,
) (*http.Request, error) {
	url := scheme + "://" + rewrittenHost
	if port != 0 {
		url += ":" + strconv.Itoa(port)
	}
	url += inbound.URL.RequestURI()

	var body io.Reader = inbound.Body
	if cfg.MaxBodyBytes > 0 {
		body = io.LimitReader(inbound.Body, cfg.MaxBodyBytes)
	}

	out, err := http.NewRequestWithContext(ctx, inbound.Method, url, body)
	if err != nil {
		return nil, err
	}
	out.Header = inbound.Header.Clone()

	out.Header.Set("x-forwarded-for", originalClientIP)
	out.Header.Set("x-forwarded-host", originalHost)
	out.Header.Set("x-forwarded-proto", originalScheme)
	out.Header.Set("host", rewrittenHost)
	out.Host = rewrittenHost

	rewriteOriginLikeHeader(out.Header, "origin", originalHost, rewrittenHost)
	rewriteOriginLikeHeader(out.Header, "referer", originalHost, rewrittenHost)

	return out, nil
}

func rewriteOriginLikeHeader(header http.Header, name, originalHost, rewrittenHost string) {
	v := header.Get(name)
	if v == "" {
		return
	}
	header.Set(name, replaceHost(v, originalHost, rewrittenHost))
}
