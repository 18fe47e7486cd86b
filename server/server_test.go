package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ezhuang13/codeu-project-2017/auth"
	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/client"
	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/relay"
	"github.com/ezhuang13/codeu-project-2017/storage"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

func startServer(t *testing.T, id ident.Uuid, rel relay.Relay) (*Server, string) {
	t.Helper()

	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	db := openTestDB(t)
	srv := New(id, []byte("team"), keys, auth.New(db), storage.New(db), rel)

	source, err := transport.NewServerSource("127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(source)

	t.Cleanup(func() {
		source.Close()
		srv.Close()
	})
	return srv, source.Addr().String()
}

// runOnQueue executes fn inside the server's queue and waits for it, so
// tests can inspect and prepare model state without racing the worker.
func runOnQueue(s *Server, fn func()) {
	done := make(chan struct{})
	s.queue.Schedule(func() {
		fn()
		close(done)
	})
	<-done
}

func TestEndToEndScenario(t *testing.T) {
	_, addr := startServer(t, ident.FromComponents(1), nil)

	c, err := client.New(transport.NewClientSource(addr))
	require.NoError(t, err)

	result, err := c.Register("alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, auth.Success, result)

	alice, err := c.Login("alice", "hunter2")
	require.NoError(t, err)
	require.NotNil(t, alice)
	require.False(t, alice.Token.IsNull())

	conversation, err := c.NewConversation("C1", alice.ID, alice.Token)
	require.NoError(t, err)
	require.NotNil(t, conversation)
	require.Equal(t, "C1", conversation.Title)

	hi, err := c.NewMessage(alice.ID, alice.Token, conversation.ID, "hi")
	require.NoError(t, err)
	require.NotNil(t, hi)
	there, err := c.NewMessage(alice.ID, alice.Token, conversation.ID, "there")
	require.NoError(t, err)
	require.NotNil(t, there)

	messages, err := c.MessagesFromRoot(hi.ID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "hi", messages[0].Content)
	require.Equal(t, "there", messages[1].Content)

	fetched, err := c.ConversationsByID([]ident.Uuid{conversation.ID})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Equal(t, hi.ID, fetched[0].FirstMessage)
	require.Equal(t, there.ID, fetched[0].LastMessage)
	require.Equal(t, []ident.Uuid{alice.ID}, fetched[0].Members)

	summaries, err := c.AllConversations()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "C1", summaries[0].Title)
}

func TestLoginRejectionOverWire(t *testing.T) {
	_, addr := startServer(t, ident.FromComponents(1), nil)

	c, err := client.New(transport.NewClientSource(addr))
	require.NoError(t, err)

	result, err := c.Register("alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, auth.Success, result)

	user, err := c.Login("alice", "wrong")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestBadTokenRejectedOverWire(t *testing.T) {
	_, addr := startServer(t, ident.FromComponents(1), nil)

	c, err := client.New(transport.NewClientSource(addr))
	require.NoError(t, err)

	_, err = c.Register("alice", "hunter2")
	require.NoError(t, err)
	alice, err := c.Login("alice", "hunter2")
	require.NoError(t, err)

	conversation, err := c.NewConversation("C1", alice.ID, ident.FromComponents(0xbad))
	require.NoError(t, err)
	require.Nil(t, conversation)
}

func TestUnknownOpcodeGetsSentinel(t *testing.T) {
	_, addr := startServer(t, ident.FromComponents(1), nil)

	conn, err := transport.NewClientSource(addr).Connect()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, chat.WriteOpcode(conn, chat.Opcode(999)))

	op, err := chat.ReadOpcode(conn)
	require.NoError(t, err)
	require.Equal(t, chat.OpNoMessage, op)
}

func TestCorruptEnvelopeGetsSentinelAndServerSurvives(t *testing.T) {
	_, addr := startServer(t, ident.FromComponents(1), nil)
	source := transport.NewClientSource(addr)

	conn, err := source.Connect()
	require.NoError(t, err)
	require.NoError(t, chat.WriteOpcode(conn, chat.OpNewUserRequest))
	// Two length-prefixed blobs that are not a valid envelope.
	require.NoError(t, codec.Bytes.Write(conn, []byte("not a wrapped key")))
	require.NoError(t, codec.Bytes.Write(conn, []byte("not a ciphertext")))

	op, err := chat.ReadOpcode(conn)
	require.NoError(t, err)
	require.Equal(t, chat.OpNoMessage, op)
	conn.Close()

	// The fault was contained to that request.
	c, err := client.New(source)
	require.NoError(t, err)
	result, err := c.Register("alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, auth.Success, result)
}

func TestFederationAcrossTwoServers(t *testing.T) {
	rel := relay.NewMemory(ident.FromComponents(50))
	_, addr1 := startServer(t, ident.FromComponents(1), rel)

	c1, err := client.New(transport.NewClientSource(addr1))
	require.NoError(t, err)
	_, err = c1.Register("alice", "hunter2")
	require.NoError(t, err)
	alice, err := c1.Login("alice", "hunter2")
	require.NoError(t, err)

	conversation, err := c1.NewConversation("C1", alice.ID, alice.Token)
	require.NoError(t, err)
	_, err = c1.NewMessage(alice.ID, alice.Token, conversation.ID, "hi")
	require.NoError(t, err)
	_, err = c1.NewMessage(alice.ID, alice.Token, conversation.ID, "there")
	require.NoError(t, err)

	// Pushes are queue tasks behind the responses; wait for both.
	require.Eventually(t, func() bool { return rel.Len() == 2 }, 5*time.Second, 10*time.Millisecond)

	s2, _ := startServer(t, ident.FromComponents(2), rel)

	bundles, err := rel.Read(ident.FromComponents(2), []byte("team"), ident.Null, 32)
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	// The merge rule requires the bundle's user to be known locally;
	// seed the second server with that identity.
	remoteUser := bundles[0].User
	runOnQueue(s2, func() {
		s2.model.AddUser(&chat.User{ID: remoteUser.ID, Name: remoteUser.Text, Creation: remoteUser.Time})
	})

	runOnQueue(s2, s2.pullRelay)

	var merged *chat.Conversation
	var contents []string
	runOnQueue(s2, func() {
		merged = s2.model.ConversationByID(conversation.ID)
		if merged == nil {
			return
		}
		current := s2.model.MessageByID(merged.FirstMessage)
		for current != nil {
			contents = append(contents, current.Content)
			current = s2.model.MessageByID(current.Next)
		}
	})

	// The first bundle created the conversation locally, attributing
	// ownership to the bundle's user; both messages then reproduced the
	// chain.
	require.NotNil(t, merged)
	require.Equal(t, remoteUser.ID, merged.Owner)
	require.Equal(t, "C1", merged.Title)
	require.Equal(t, []string{"hi", "there"}, contents)

	// Replaying the whole batch changes nothing.
	var before, after [3]int
	runOnQueue(s2, func() {
		before = snapshotCounts(s2.model)
		s2.lastSeen = ident.Null
	})
	runOnQueue(s2, s2.pullRelay)
	runOnQueue(s2, func() { after = snapshotCounts(s2.model) })
	require.Equal(t, before, after)
}

func TestMergeSkipsBundleForUnknownUser(t *testing.T) {
	s, _ := startServer(t, ident.FromComponents(1), nil)

	at := time.Unix(1488501234, 0).UTC()
	bundle := relay.Bundle{
		ID:           ident.FromComponents(50, 1),
		User:         relay.Pack(ident.FromComponents(9, 1), "stranger", at),
		Conversation: relay.Pack(ident.FromComponents(9, 2), "ghost room", at),
		Message:      relay.Pack(ident.FromComponents(9, 3), "boo", at),
	}

	var before, after [3]int
	runOnQueue(s, func() {
		before = snapshotCounts(s.model)
		s.mergeBundle(bundle)
		after = snapshotCounts(s.model)
	})

	// No partial merge: neither the conversation nor the message landed.
	require.Equal(t, before, after)
}

func TestMergeBundleIdempotent(t *testing.T) {
	s, _ := startServer(t, ident.FromComponents(1), nil)

	at := time.Unix(1488501234, 0).UTC()
	userID := ident.FromComponents(9, 1)
	bundle := relay.Bundle{
		ID:           ident.FromComponents(50, 1),
		User:         relay.Pack(userID, "remote", at),
		Conversation: relay.Pack(ident.FromComponents(9, 2), "room", at),
		Message:      relay.Pack(ident.FromComponents(9, 3), "hello", at),
	}

	var once, twice [3]int
	runOnQueue(s, func() {
		s.model.AddUser(&chat.User{ID: userID, Name: "remote", Creation: at})
		s.mergeBundle(bundle)
		once = snapshotCounts(s.model)
		s.mergeBundle(bundle)
		twice = snapshotCounts(s.model)
	})
	require.Equal(t, once, twice)
}
