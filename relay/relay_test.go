package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

var relayRoot = ident.FromComponents(99)

func testComponents() (Component, Component, Component) {
	now := time.Unix(1488501234, 0).UTC()
	user := Pack(ident.FromComponents(1, 2), "alice", now)
	conversation := Pack(ident.FromComponents(1, 3), "plans", now)
	message := Pack(ident.FromComponents(1, 4), "meet at noon", now)
	return user, conversation, message
}

func TestMemoryWriteThenRead(t *testing.T) {
	m := NewMemory(relayRoot)
	serverID := ident.FromComponents(7)
	user, conversation, message := testComponents()

	accepted, err := m.Write(serverID, nil, user, conversation, message)
	require.NoError(t, err)
	require.True(t, accepted)

	bundles, err := m.Read(serverID, nil, ident.Null, 32)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, user, bundles[0].User)
	require.Equal(t, conversation, bundles[0].Conversation)
	require.Equal(t, message, bundles[0].Message)
	require.False(t, bundles[0].ID.IsNull())
}

func TestMemoryWatermark(t *testing.T) {
	m := NewMemory(relayRoot)
	serverID := ident.FromComponents(7)
	user, conversation, message := testComponents()

	for i := 0; i < 5; i++ {
		_, err := m.Write(serverID, nil, user, conversation, message)
		require.NoError(t, err)
	}

	first, err := m.Read(serverID, nil, ident.Null, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	rest, err := m.Read(serverID, nil, first[2].ID, 32)
	require.NoError(t, err)
	require.Len(t, rest, 2)

	// No overlap between the two pages.
	for _, b := range rest {
		require.NotEqual(t, first[2].ID, b.ID)
	}

	// Caught up: nothing after the newest bundle.
	tail, err := m.Read(serverID, nil, rest[1].ID, 32)
	require.NoError(t, err)
	require.Empty(t, tail)
}

func TestMemoryUnknownWatermarkReadsFromStart(t *testing.T) {
	m := NewMemory(relayRoot)
	serverID := ident.FromComponents(7)
	user, conversation, message := testComponents()

	_, err := m.Write(serverID, nil, user, conversation, message)
	require.NoError(t, err)

	bundles, err := m.Read(serverID, nil, ident.FromComponents(0xdead), 32)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
}

func TestMemoryAuthorization(t *testing.T) {
	m := NewMemory(relayRoot)
	good := ident.FromComponents(7)
	bad := ident.FromComponents(8)
	m.RegisterServer(good, []byte("s3cret"))
	user, conversation, message := testComponents()

	accepted, err := m.Write(good, []byte("s3cret"), user, conversation, message)
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = m.Write(bad, []byte("s3cret"), user, conversation, message)
	require.NoError(t, err)
	require.False(t, accepted)

	accepted, err = m.Write(good, []byte("wrong"), user, conversation, message)
	require.NoError(t, err)
	require.False(t, accepted)
	require.Equal(t, 1, m.Len())

	bundles, err := m.Read(bad, []byte("s3cret"), ident.Null, 32)
	require.NoError(t, err)
	require.Empty(t, bundles)
}

func TestNoOp(t *testing.T) {
	var r NoOp
	user, conversation, message := testComponents()

	accepted, err := r.Write(ident.FromComponents(7), nil, user, conversation, message)
	require.NoError(t, err)
	require.True(t, accepted)

	bundles, err := r.Read(ident.FromComponents(7), nil, ident.Null, 32)
	require.NoError(t, err)
	require.Empty(t, bundles)
}

func TestRemoteAgainstServedMemory(t *testing.T) {
	listener, err := transport.NewServerSource("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	backing := NewMemory(relayRoot)
	go Serve(listener, backing)

	remote := NewRemote(transport.NewClientSource(listener.Addr().String()))
	serverID := ident.FromComponents(7)
	user, conversation, message := testComponents()

	accepted, err := remote.Write(serverID, []byte("team"), user, conversation, message)
	require.NoError(t, err)
	require.True(t, accepted)

	bundles, err := remote.Read(serverID, []byte("team"), ident.Null, 32)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, user, bundles[0].User)
	require.Equal(t, conversation, bundles[0].Conversation)
	require.Equal(t, message, bundles[0].Message)

	// Watermark advances across the wire too.
	empty, err := remote.Read(serverID, []byte("team"), bundles[0].ID, 32)
	require.NoError(t, err)
	require.Empty(t, empty)
}
