package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	c, err := LoadServer()
	require.NoError(t, err)
	require.Equal(t, ":2017", c.ListenAddr)
	require.Equal(t, "1", c.ServerID)
	require.Empty(t, c.RelayAddr)
}

func TestLoadServerFromEnvironment(t *testing.T) {
	t.Setenv("CHAT_SERVER_ID", "a.b.c")
	t.Setenv("CHAT_LISTEN_ADDR", ":4000")
	t.Setenv("CHAT_RELAY_ADDR", "relay.example:2018")

	c, err := LoadServer()
	require.NoError(t, err)
	require.Equal(t, "a.b.c", c.ServerID)
	require.Equal(t, ":4000", c.ListenAddr)
	require.Equal(t, "relay.example:2018", c.RelayAddr)
}

func TestRelayServerEntries(t *testing.T) {
	c := &Relay{Servers: "1=alpha,2=beta"}
	entries, err := c.ServerEntries()
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"1", "alpha"}, {"2", "beta"}}, entries)

	c = &Relay{Servers: "broken"}
	_, err = c.ServerEntries()
	require.Error(t, err)

	c = &Relay{}
	entries, err = c.ServerEntries()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApplyLogLevel(t *testing.T) {
	require.NoError(t, ApplyLogLevel("debug"))
	require.Error(t, ApplyLogLevel("chatty"))
}
