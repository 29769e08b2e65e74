package health

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchesConfiguredPaths(t *testing.T) {
	cfg := Config{Paths: []string{"/_lb/_/health", "/_lb/_/checkhealth"}}
	require.True(t, cfg.Matches("/_lb/_/health"))
	require.True(t, cfg.Matches("/_lb/_/checkhealth"))
	require.False(t, cfg.Matches("/other"))
}

func TestRespondSetsIdentificationHeaders(t *testing.T) {
	cfg := Config{
		Hostname:     "node-1",
		LocalAddress: "10.0.0.5",
		ServerName:   "rbx-proxy",
		PoweredBy:    "rbx-proxy",
	}
	rec := httptest.NewRecorder()
	Respond(rec, cfg)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "rbx-proxy", rec.Header().Get("server"))
	require.Contains(t, rec.Header().Get("x-lb-service"), "node-1")
	require.Contains(t, rec.Header().Get("x-lb-service"), "10.0.0.5")
}

func TestRespondARCDeployModeWritesNodeURLBody(t *testing.T) {
	cfg := Config{
		Hostname:      "node-1",
		LocalAddress:  "10.0.0.5",
		ARCDeployMode: true,
		NodeURL:       "https://node-1.internal.example.com",
	}
	rec := httptest.NewRecorder()
	Respond(rec, cfg)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "https://node-1.internal.example.com")
}
