package replicator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfdlabs/rbx-proxy/internal/settings"
)

// TestHandleConvergence exercises spec §8 invariant 6 by driving the
// message-handling path directly (bypassing the network), since
// opening real multicast sockets in a sandboxed test environment is
// unreliable.
func TestHandleConvergence(t *testing.T) {
	reg := settings.New(nil, nil)
	reg.Register("HATE_LAN_ACCESS", settings.EnvSafety, settings.KindBool, "false")

	r := &Replicator{hostname: "node-b", registry: reg, log: nil}
	r.log = nilLogger()

	val := "true"
	r.handle(mustJSON(t, message{Environment: settings.EnvSafety, Key: "HATE_LAN_ACCESS", Value: &val, Hostname: "node-a"}))

	require.True(t, reg.Bool("HATE_LAN_ACCESS"))
}

func TestHandleIgnoresOwnHostname(t *testing.T) {
	reg := settings.New(nil, nil)
	reg.Register("HATE_LAN_ACCESS", settings.EnvSafety, settings.KindBool, "false")

	r := &Replicator{hostname: "node-a", registry: reg, log: nilLogger()}
	val := "true"
	r.handle(mustJSON(t, message{Environment: settings.EnvSafety, Key: "HATE_LAN_ACCESS", Value: &val, Hostname: "node-a"}))

	require.False(t, reg.Bool("HATE_LAN_ACCESS"))
}

func TestHandleRemoval(t *testing.T) {
	reg := settings.New(nil, nil)
	reg.Register("HATE_LAN_ACCESS", settings.EnvSafety, settings.KindBool, "false")
	require.NoError(t, reg.Override(settings.EnvSafety, "HATE_LAN_ACCESS", "true"))

	r := &Replicator{hostname: "node-b", registry: reg, log: nilLogger()}
	r.handle(mustJSON(t, message{Environment: settings.EnvSafety, Key: "HATE_LAN_ACCESS", Value: nil, Hostname: "node-a"}))

	require.False(t, reg.Bool("HATE_LAN_ACCESS"))
}
