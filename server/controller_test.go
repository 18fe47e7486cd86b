package server

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/ezhuang13/codeu-project-2017/auth"
	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/storage"
)

var serverRoot = ident.FromComponents(1)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	db := openTestDB(t)
	c := NewController(NewModel(), auth.New(db), storage.New(db), ident.NewRandomGenerator(serverRoot))
	require.Equal(t, auth.Success, c.NewUser("alice", "hunter2"))
	return c
}

func login(t *testing.T, c *Controller) *chat.User {
	t.Helper()
	user := c.Login("alice", "hunter2")
	require.NotNil(t, user)
	return user
}

func TestLoginAllocatesFreshIdentity(t *testing.T) {
	c := newTestController(t)

	first := login(t, c)
	second := login(t, c)

	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, first.Token, second.Token)
	require.Equal(t, first.Name, second.Name)

	// Both sessions stay live in the model at once.
	require.NotNil(t, c.model.UserByID(first.ID))
	require.NotNil(t, c.model.UserByID(second.ID))
	require.Same(t, c.model.UserByID(first.ID), c.model.UserByToken(first.Token))
}

func TestLoginBadCredentials(t *testing.T) {
	c := newTestController(t)
	require.Nil(t, c.Login("alice", "wrong"))
	require.Nil(t, c.Login("nobody", "hunter2"))
	require.Empty(t, c.model.Users())
}

func TestCheckToken(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)

	require.True(t, c.CheckToken(user.ID, user.Token))
	require.False(t, c.CheckToken(user.ID, ident.FromComponents(1, 2, 3)))
	require.False(t, c.CheckToken(user.ID, ident.Null))
	require.False(t, c.CheckToken(ident.FromComponents(9), user.Token))
}

func TestChainIntegrity(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)
	conversation := c.NewConversation("plans", user.ID, user.Token)
	require.NotNil(t, conversation)

	bodies := []string{"one", "two", "three", "four"}
	var sent []*chat.Message
	for _, body := range bodies {
		m := c.NewMessage(user.ID, user.Token, conversation.ID, body)
		require.NotNil(t, m)
		sent = append(sent, m)
	}

	// Walking firstMessage via next visits every message exactly once,
	// in creation order, ending at lastMessage with a Null next.
	var walked []string
	current := c.model.MessageByID(conversation.FirstMessage)
	for current != nil {
		walked = append(walked, current.Content)
		current = c.model.MessageByID(current.Next)
	}
	require.Equal(t, bodies, walked)

	require.Equal(t, sent[len(sent)-1].ID, conversation.LastMessage)
	require.True(t, c.model.MessageByID(conversation.LastMessage).Next.IsNull())
	require.Equal(t, sent[0].ID, conversation.FirstMessage)
	require.True(t, sent[0].Previous.IsNull())
}

func TestEmptyConversationHasNoChain(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)
	conversation := c.NewConversation("empty", user.ID, user.Token)
	require.NotNil(t, conversation)
	require.True(t, conversation.FirstMessage.IsNull())
	require.True(t, conversation.LastMessage.IsNull())
	require.Empty(t, conversation.Members)
}

func TestMembersTracksAuthors(t *testing.T) {
	c := newTestController(t)
	require.Equal(t, auth.Success, c.NewUser("bob", "pw"))

	alice := login(t, c)
	bob := c.Login("bob", "pw")
	require.NotNil(t, bob)

	conversation := c.NewConversation("shared", alice.ID, alice.Token)
	require.NotNil(t, conversation)

	// Ownership alone does not grant membership.
	require.False(t, conversation.HasMember(alice.ID))

	require.NotNil(t, c.NewMessage(bob.ID, bob.Token, conversation.ID, "hi"))
	require.NotNil(t, c.NewMessage(bob.ID, bob.Token, conversation.ID, "again"))
	require.NotNil(t, c.NewMessage(alice.ID, alice.Token, conversation.ID, "hello"))

	require.Equal(t, []ident.Uuid{bob.ID, alice.ID}, conversation.Members)
}

func snapshotCounts(m *Model) [3]int {
	return [3]int{len(m.Users()), len(m.Conversations()), m.MessageCount()}
}

func TestTokenEnforcement(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)
	conversation := c.NewConversation("plans", user.ID, user.Token)
	require.NotNil(t, conversation)

	before := snapshotCounts(c.model)
	chainBefore := *conversation

	badToken := ident.FromComponents(0xbad)
	require.Nil(t, c.NewConversation("sneaky", user.ID, badToken))
	require.Nil(t, c.NewMessage(user.ID, badToken, conversation.ID, "sneaky"))
	require.Nil(t, c.NewMessage(user.ID, ident.Null, conversation.ID, "sneaky"))

	require.Equal(t, before, snapshotCounts(c.model))
	require.Equal(t, chainBefore.FirstMessage, conversation.FirstMessage)
	require.Equal(t, chainBefore.LastMessage, conversation.LastMessage)
	require.Equal(t, chainBefore.Members, conversation.Members)
}

func TestNewMessageUnknownConversation(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)

	before := c.model.MessageCount()
	require.Nil(t, c.NewMessage(user.ID, user.Token, ident.FromComponents(7, 7), "lost"))
	require.Equal(t, before, c.model.MessageCount())
}

func TestAllocatedIDsArePairwiseDistinct(t *testing.T) {
	c := newTestController(t)

	seen := make(map[ident.Uuid]bool)
	record := func(id ident.Uuid) {
		require.False(t, seen[id], "id %v allocated twice", id)
		seen[id] = true
	}

	for i := 0; i < 20; i++ {
		user := login(t, c)
		record(user.ID)
		record(user.Token)

		conversation := c.NewConversation("room", user.ID, user.Token)
		require.NotNil(t, conversation)
		record(conversation.ID)

		message := c.NewMessage(user.ID, user.Token, conversation.ID, "hello")
		require.NotNil(t, message)
		record(message.ID)
	}
}

func TestHistoryReplayOnLogin(t *testing.T) {
	c := newTestController(t)

	first := login(t, c)
	conversation := c.NewConversation("memories", first.ID, first.Token)
	require.NotNil(t, conversation)
	require.NotNil(t, c.NewMessage(first.ID, first.Token, conversation.ID, "hi"))
	require.NotNil(t, c.NewMessage(first.ID, first.Token, conversation.ID, "there"))

	second := login(t, c)

	// The second session sees a replayed copy of the conversation with
	// fresh ids, owned by the new session identity.
	var replayed *chat.Conversation
	for _, candidate := range c.model.Conversations() {
		if candidate.Owner == second.ID {
			replayed = candidate
		}
	}
	require.NotNil(t, replayed)
	require.NotEqual(t, conversation.ID, replayed.ID)
	require.Equal(t, "memories", replayed.Title)

	var contents []string
	current := c.model.MessageByID(replayed.FirstMessage)
	for current != nil {
		contents = append(contents, current.Content)
		current = c.model.MessageByID(current.Next)
	}
	require.Equal(t, []string{"hi", "there"}, contents)
}

func TestAddConversationRawRequiresKnownOwner(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)

	remote := ident.FromComponents(8, 1)
	require.Nil(t, c.AddConversationRaw(remote, ident.FromComponents(9), now(), "ghost"))

	created := c.AddConversationRaw(remote, user.ID, now(), "real")
	require.NotNil(t, created)
	require.Equal(t, remote, created.ID)

	// The id is now taken; a second raw add is refused.
	require.Nil(t, c.AddConversationRaw(remote, user.ID, now(), "dup"))
}

func TestAddMessageRawAppendsToChain(t *testing.T) {
	c := newTestController(t)
	user := login(t, c)
	conversation := c.AddConversationRaw(ident.FromComponents(8, 1), user.ID, now(), "remote")
	require.NotNil(t, conversation)

	m1 := c.AddMessageRaw(ident.FromComponents(8, 2), user.ID, conversation.ID, now(), "hi")
	require.NotNil(t, m1)
	m2 := c.AddMessageRaw(ident.FromComponents(8, 3), user.ID, conversation.ID, now(), "there")
	require.NotNil(t, m2)

	require.Equal(t, m1.ID, conversation.FirstMessage)
	require.Equal(t, m2.ID, conversation.LastMessage)
	require.Equal(t, m2.ID, m1.Next)
	require.Equal(t, m1.ID, m2.Previous)
}
