package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imattau/fed-AI-sub001/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "8080", c.RouterPort)
	require.Equal(t, int64(5*60_000), c.RouterReplayWindowMs)
	require.Equal(t, 0.85, c.RouterOffloadThreshold)
	require.Equal(t, 16, c.RouterMaxOffloads)
	require.Equal(t, int64(500), c.RouterAuctionTimeoutMs)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ROUTER_PORT", "9090")
	t.Setenv("ROUTER_FEE_BPS", "250")
	t.Setenv("ROUTER_REQUIRE_PAYMENT", "true")
	t.Setenv("ROUTER_RELAY_BOOTSTRAP", "wss://a,wss://b")
	t.Setenv("ROUTER_RELAY_TRUST", "peer-1=0.9,peer-2=0.4")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "9090", c.RouterPort)
	require.Equal(t, 250, c.RouterFeeBps)
	require.True(t, c.RouterRequirePayment)
	require.Equal(t, []string{"wss://a", "wss://b"}, c.RouterRelayBootstrap)
	require.Equal(t, 0.9, c.RouterRelayTrust["peer-1"])
}

func TestLoad_InvalidIntegerErrors(t *testing.T) {
	t.Setenv("ROUTER_FEE_BPS", "not-a-number")
	_, err := config.Load()
	require.Error(t, err)
}
