package cors

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCORSYAML = `
- route_template: "^/api/.*$"
  allowed_origins: ["^https://(.+\\.)?example\\.com$"]
  allowed_methods: ["GET", "POST"]
  exposed_headers: ["x-request-id"]
  max_age: 600
  allow_credentials: true
- route_template: "^/open/.*$"
  allowed_origins: []
  allow_request_origin_if_no_allowed_origins: true
`

func loadSample(t *testing.T) *Set {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCORSYAML), 0o644))
	return NewLoader(path, false, nil).Current()
}

func TestLookupMatchesRouteInOrder(t *testing.T) {
	set := loadSample(t)
	require.Equal(t, 2, set.Len())

	rule := set.Lookup("/api/games/1")
	require.NotNil(t, rule)
	require.True(t, rule.AllowsOrigin("https://sub.example.com"))
	require.False(t, rule.AllowsOrigin("https://evil.example.org"))
}

func TestApplyToResponseSetsHeaders(t *testing.T) {
	set := loadSample(t)
	rule := set.Lookup("/api/games/1")
	require.NotNil(t, rule)

	header := http.Header{}
	rule.ApplyToResponse(header, "https://sub.example.com")

	require.Equal(t, "https://sub.example.com", header.Get(HeaderACAO))
	require.Equal(t, "true", header.Get(HeaderACAC))
	require.Equal(t, "600", header.Get(HeaderACMA))
	require.Equal(t, "Origin", header.Get(HeaderVary))
}

func TestApplyToResponseRejectsDisallowedOrigin(t *testing.T) {
	set := loadSample(t)
	rule := set.Lookup("/api/games/1")
	require.NotNil(t, rule)

	header := http.Header{}
	rule.ApplyToResponse(header, "https://evil.example.org")
	require.Empty(t, header.Get(HeaderACAO))
}

func TestApplyToResponseWildcardRouteAllowsAnyOrigin(t *testing.T) {
	set := loadSample(t)
	rule := set.Lookup("/open/anything")
	require.NotNil(t, rule)
	require.True(t, rule.AllowsOrigin("https://anything.invalid"))
}

func TestApplyToResponseOverwriteStripsUpstreamHeaders(t *testing.T) {
	rule := &Rule{
		RouteTemplate:                 "^/api/.*$",
		AllowedOrigins:                []string{"*"},
		AllowResponseHeadersOverwrite: true,
	}
	require.NoError(t, rule.compile())

	header := http.Header{}
	header.Set(HeaderACAO, "https://stale.example.com")
	header.Set(HeaderACAM, "DELETE")

	rule.ApplyToResponse(header, "https://client.example.com")
	require.Equal(t, "https://client.example.com", header.Get(HeaderACAO))
	require.Empty(t, header.Get(HeaderACAM))
}
