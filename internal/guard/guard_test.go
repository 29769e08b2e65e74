package guard

import (
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/mfdlabs/rbx-proxy/internal/netutil"
	"github.com/stretchr/testify/require"
)

func mustCIDRSet(t *testing.T, raw string) netutil.CIDRSet {
	t.Helper()
	set, err := netutil.ParseCIDRList(raw)
	require.NoError(t, err)
	return set
}

func TestCheckAllowsWhenDisabled(t *testing.T) {
	v := Check(Config{}, netip.MustParseAddr("1.2.3.4"), "anything")
	require.False(t, v.Rejected)
}

func TestCheckRejectsOutsideCIDR(t *testing.T) {
	cfg := Config{
		CIDRCheckEnabled: true,
		AllowedCIDRs:     mustCIDRSet(t, "10.0.0.0/8"),
	}
	v := Check(cfg, netip.MustParseAddr("8.8.8.8"), "Mozilla/5.0")
	require.True(t, v.Rejected)
	require.Equal(t, "cidr_denied", v.Reason)
}

func TestCheckAllowsInsideCIDR(t *testing.T) {
	cfg := Config{
		CIDRCheckEnabled: true,
		AllowedCIDRs:     mustCIDRSet(t, "10.0.0.0/8"),
	}
	v := Check(cfg, netip.MustParseAddr("10.1.2.3"), "Mozilla/5.0")
	require.False(t, v.Rejected)
}

func TestCheckRejectsCrawlerUserAgent(t *testing.T) {
	cfg := Config{CrawlerCheckEnabled: true}
	v := Check(cfg, netip.MustParseAddr("1.2.3.4"), "curl/8.0.1")
	require.True(t, v.Rejected)
	require.Equal(t, "crawler_denied", v.Reason)
}

func TestCheckCIDRShortCircuitsBeforeCrawler(t *testing.T) {
	cfg := Config{
		CIDRCheckEnabled:    true,
		AllowedCIDRs:        mustCIDRSet(t, "10.0.0.0/8"),
		CrawlerCheckEnabled: true,
	}
	v := Check(cfg, netip.MustParseAddr("8.8.8.8"), "curl/8.0.1")
	require.True(t, v.Rejected)
	require.Equal(t, "cidr_denied", v.Reason)
}

func TestApplyWritesForbiddenResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	Apply(rec, Verdict{Rejected: true, Mode: RejectWithHTTP403})
	require.Equal(t, 403, rec.Code)
	require.Contains(t, rec.Body.String(), "Forbidden")
}
