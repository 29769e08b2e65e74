package forward

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mfdlabs/rbx-proxy/internal/httperror"
	"github.com/stretchr/testify/require"
)

func TestBuildUpstreamRequestSetsForwardingHeaders(t *testing.T) {
	inbound := httptest.NewRequest(http.MethodPost, "https://foo.gametest1.example.com/api/x?y=1", strings.NewReader("body"))
	inbound.Header.Set("Origin", "https://foo.gametest1.example.com")

	out, err := BuildUpstreamRequest(context.Background(), inbound, Config{MaxBodyBytes: 1024},
		"https", "foo.example.com", 443, "198.51.100.1", "foo.gametest1.example.com", "https")
	require.NoError(t, err)

	require.Equal(t, "198.51.100.1", out.Header.Get("x-forwarded-for"))
	require.Equal(t, "foo.gametest1.example.com", out.Header.Get("x-forwarded-host"))
	require.Equal(t, "https", out.Header.Get("x-forwarded-proto"))
	require.Equal(t, "foo.example.com", out.Host)
	require.Equal(t, "https://foo.example.com", out.Header.Get("Origin"))
	require.Equal(t, "https://foo.example.com:443/api/x?y=1", out.URL.String())
}

func TestTransformResponseRewritesLocation(t *testing.T) {
	header := http.Header{}
	header.Set("Location", "https://foo.example.com/landing")

	TransformResponse(header, []byte("ok"), "foo.gametest1.example.com", "foo.example.com", time.Millisecond)
	require.Equal(t, "https://foo.gametest1.example.com/landing", header.Get("Location"))
}

func TestTransformResponseStripsHopHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("Server", "upstream/1.0")
	header.Set("Date", "yesterday")
	header.Set("Connection", "keep-alive")
	header.Set("X-Powered-By", "upstream")

	TransformResponse(header, []byte("ok"), "a.example.com", "b.example.com", time.Millisecond)

	require.Empty(t, header.Get("Server"))
	require.Empty(t, header.Get("Date"))
	require.Empty(t, header.Get("Connection"))
	require.Empty(t, header.Get("X-Powered-By"))
}

func TestTransformResponseStripsBOMAndRecomputesLength(t *testing.T) {
	header := http.Header{}
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)

	out := TransformResponse(header, body, "a.example.com", "b.example.com", time.Millisecond)
	require.Equal(t, "hello", string(out))
	require.Equal(t, "5", header.Get("content-length"))
}

func TestTransformResponseStampsTiming(t *testing.T) {
	header := http.Header{}
	TransformResponse(header, []byte("ok"), "a.example.com", "b.example.com", 42*time.Millisecond)
	require.Equal(t, "42ms", header.Get("x-downstream-timing"))
}

func TestRewriteSetCookieDomainPreservesLeadingDot(t *testing.T) {
	header := http.Header{}
	header.Add("Set-Cookie", "session=abc; Domain=.example.com; Path=/")

	rewriteSetCookieDomains(header, "www.gametest1.example.com", "www.example.com")

	got := header.Values("Set-Cookie")
	require.Len(t, got, 1)
	require.Contains(t, got[0], "Domain=.example.com")
}

func TestIsSuccessStatus(t *testing.T) {
	require.True(t, IsSuccessStatus(200))
	require.True(t, IsSuccessStatus(304))
	require.False(t, IsSuccessStatus(400))
	require.False(t, IsSuccessStatus(500))
}

func TestInvokeReturnsGatewayTimeoutOnDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(Config{Timeout: 5 * time.Millisecond})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, _, err = Invoke(client, req, srv.URL)
	require.Error(t, err)

	var herr *httperror.Error
	require.ErrorAs(t, err, &herr)
	require.Equal(t, httperror.KindGatewayTimeout, herr.Kind)
	require.Equal(t, http.StatusGatewayTimeout, herr.StatusCode)
}

func TestInvokeDoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/elsewhere")
		w.WriteHeader(http.StatusFound)
	}))
	defer upstream.Close()

	client := NewClient(Config{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodGet, upstream.URL, nil)
	require.NoError(t, err)

	resp, _, err := Invoke(client, req, upstream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
}
