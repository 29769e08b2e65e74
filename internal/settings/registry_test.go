package settings

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryDefaultsAndOverrides(t *testing.T) {
	r := New(nil, nil)
	RegisterDefaults(r)

	require.False(t, r.Bool("CIDR_CHECK_ENABLED"))

	require.NoError(t, r.Override(EnvGuard, "CIDR_CHECK_ENABLED", "true"))
	require.True(t, r.Bool("CIDR_CHECK_ENABLED"))

	r.Reset("CIDR_CHECK_ENABLED")
	require.False(t, r.Bool("CIDR_CHECK_ENABLED"))
}

func TestRegistryOwnershipConflict(t *testing.T) {
	r := New(nil, nil)
	r.Register("SOME_KEY", EnvGuard, KindBool, "false")

	err := r.Override(EnvForwarder, "SOME_KEY", "true")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered in environment")
}

func TestRegistryRegisterConflictPanics(t *testing.T) {
	r := New(nil, nil)
	r.Register("SOME_KEY", EnvGuard, KindBool, "false")

	require.Panics(t, func() {
		r.Register("SOME_KEY", EnvForwarder, KindBool, "false")
	})
}

func TestRegistryCIDRList(t *testing.T) {
	r := New(nil, nil)
	r.Register("ALLOWED", EnvGuard, KindCIDRList, "198.51.100.0/24")
	set := r.CIDRList("ALLOWED")
	require.False(t, set.Empty(netip.MustParseAddr("198.51.100.5")))
	require.True(t, set.Allows(netip.MustParseAddr("198.51.100.5")))
}
