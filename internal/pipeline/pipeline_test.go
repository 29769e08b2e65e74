package pipeline

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfdlabs/rbx-proxy/internal/cors"
	"github.com/mfdlabs/rbx-proxy/internal/envelope"
	"github.com/mfdlabs/rbx-proxy/internal/forward"
	"github.com/mfdlabs/rbx-proxy/internal/guard"
	"github.com/mfdlabs/rbx-proxy/internal/health"
	"github.com/mfdlabs/rbx-proxy/internal/metrics"
	"github.com/mfdlabs/rbx-proxy/internal/netutil"
	"github.com/mfdlabs/rbx-proxy/internal/resolve"
	"github.com/mfdlabs/rbx-proxy/internal/rules"
	"github.com/mfdlabs/rbx-proxy/internal/safety"
	"github.com/mfdlabs/rbx-proxy/internal/telemetry"
)

const sampleRulesYAML = `
- route_template: "^/hardcoded$"
  hostname: ""
  method: ""
  status_code: 200
  body: "hello from a rule"
`

const emptyRewriteYAML = `[]`
const emptyCORSYAML = `[]`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newTestPipeline(t *testing.T, upstreamURL string) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	rulesPath := writeFile(t, dir, "rules.yaml", sampleRulesYAML)
	rewritePath := writeFile(t, dir, "rewrite.yaml", emptyRewriteYAML)
	corsPath := writeFile(t, dir, "cors.yaml", emptyCORSYAML)

	log := zap.NewNop()

	_, upstreamPort := splitHostPort(t, upstreamURL)
	port, err := strconv.Atoi(upstreamPort)
	require.NoError(t, err)

	return &Pipeline{
		Envelope: envelope.Config{TrustedProxies: netutil.CIDRSet{}},
		Guard:    guard.Config{},
		Health: health.Config{
			Paths:       []string{"/_lb/_/health"},
			Hostname:    "test-node",
			ServerName:  "rbx-proxy",
			PoweredBy:   "rbx-proxy",
			ServiceName: "rbx-proxy",
		},
		// Zero-value Rewrite is a no-op (Apply leaves the host
		// unchanged), so the rewritten host is just the stripped
		// inbound host -- tests pass IP-literal Host headers so
		// net.Resolver.LookupIPAddr resolves them directly without
		// touching real DNS.
		Resolver: resolve.Resolver{StripPort: true, Rewrite: resolve.Rewrite{}},
		Safety: safety.NewFilter(netip.Addr{}, netip.Addr{}, false, func() (netip.Addr, error) {
			return netip.Addr{}, nil
		}),
		Rules:   rules.NewLoader(rulesPath, false, log),
		Rewrite: rules.NewRewriteLoader(rewritePath, false, log),
		CORS:    cors.NewLoader(corsPath, false, log),
		Forward: forward.Config{Timeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
		Client:  forward.NewClient(forward.Config{Timeout: 5 * time.Second}),

		DefaultScheme: "http",
		DefaultPort:   port,

		Metrics:   metrics.NewRecorder(prometheus.NewRegistry()),
		Telemetry: telemetry.Noop{},
		Log:       log,
	}
}

func splitHostPort(t *testing.T, rawURL string) (string, string) {
	t.Helper()
	u := strings.TrimPrefix(rawURL, "http://")
	host, port, err := net.SplitHostPort(u)
	require.NoError(t, err)
	return host, port
}

// redirectingClient builds an *http.Client whose transport ignores
// whatever host:port the request was built for and always dials
// upstreamAddr, so tests can exercise the Forwarder against a fake
// "public" hostname (needed to clear the Safety Filter's loopback
// rejection, spec §4.5) without any real DNS or network round trip.
func redirectingClient(upstreamAddr string) *http.Client {
	transport := &http.Transport{
		DisableCompression: true,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, upstreamAddr)
		},
	}
	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestHealthCheckShortCircuitsBeforeForwarding(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := newTestPipeline(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/_lb/_/health", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
	// Finalize's lowercasing pass leaves the map keyed by "server"
	// (lowercase), not the canonical "Server" http.Header.Get expects,
	// so assert against the raw map the way a wire reader would see it.
	require.Equal(t, []string{"rbx-proxy"}, rec.Header()["server"])
}

func TestHardcodedRuleShortCircuitsBeforeForwarding(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := newTestPipeline(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/hardcoded", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	// 203.0.113.0/24 is TEST-NET-3 (RFC 5737): a public, non-loopback,
	// non-LAN literal the Safety Filter lets through, so the request
	// reaches the rule engine instead of being rejected beforehand.
	req.Host = "203.0.113.50:80"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello from a rule", rec.Body.String())
}

func TestForwardsUnmatchedRequestToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream response"))
	}))
	defer upstream.Close()

	p := newTestPipeline(t, upstream.URL)
	upstreamAddr := strings.TrimPrefix(upstream.URL, "http://")
	p.Client = redirectingClient(upstreamAddr)

	req := httptest.NewRequest(http.MethodGet, "/some/path", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	// A fake public (TEST-NET-3) host: the Safety Filter only sees
	// this non-loopback literal, while redirectingClient's transport
	// actually dials the real httptest upstream.
	req.Host = "203.0.113.50:80"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "upstream response", rec.Body.String())
}

func TestGuardRejectsDisallowedCIDRBeforeForwarding(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	allowed, err := netutil.ParseCIDRList("198.51.100.0/24")
	require.NoError(t, err)

	p := newTestPipeline(t, upstream.URL)
	p.Guard = guard.Config{CIDRCheckEnabled: true, AllowedCIDRs: allowed}

	req := httptest.NewRequest(http.MethodGet, "/some/path", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	req.Host = "anything.example.com"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMissingHostHeaderRejectedBeforeForwarding(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := newTestPipeline(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/some/path", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	req.Host = ""
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
