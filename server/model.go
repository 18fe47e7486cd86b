package server

import (
	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

// Model is the in-memory store: four id indices plus insertion-order
// sequences for enumeration. It is an arena; cross references between
// objects are ids resolved through the maps, never pointers held by
// other objects.
//
// Model has no locks. It must only be touched from inside tasks run by
// the server's queue.
type Model struct {
	usersByID         map[ident.Uuid]*chat.User
	usersByToken      map[ident.Uuid]*chat.User
	conversationsByID map[ident.Uuid]*chat.Conversation
	messagesByID      map[ident.Uuid]*chat.Message

	userOrder         []ident.Uuid
	conversationOrder []ident.Uuid
	messageOrder      []ident.Uuid
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		usersByID:         make(map[ident.Uuid]*chat.User),
		usersByToken:      make(map[ident.Uuid]*chat.User),
		conversationsByID: make(map[ident.Uuid]*chat.Conversation),
		messagesByID:      make(map[ident.Uuid]*chat.Message),
	}
}

// HasID reports whether the id is live in any of the four indices.
// Used by the collision-checked id allocator.
func (m *Model) HasID(id ident.Uuid) bool {
	if _, ok := m.usersByID[id]; ok {
		return true
	}
	if _, ok := m.usersByToken[id]; ok {
		return true
	}
	if _, ok := m.conversationsByID[id]; ok {
		return true
	}
	_, ok := m.messagesByID[id]
	return ok
}

// AddUser indexes a user by id and, when set, by token.
func (m *Model) AddUser(user *chat.User) {
	m.usersByID[user.ID] = user
	if !user.Token.IsNull() {
		m.usersByToken[user.Token] = user
	}
	m.userOrder = append(m.userOrder, user.ID)
}

// AddConversation indexes a conversation.
func (m *Model) AddConversation(conversation *chat.Conversation) {
	m.conversationsByID[conversation.ID] = conversation
	m.conversationOrder = append(m.conversationOrder, conversation.ID)
}

// AddMessage indexes a message. Chain edges are the controller's job.
func (m *Model) AddMessage(message *chat.Message) {
	m.messagesByID[message.ID] = message
	m.messageOrder = append(m.messageOrder, message.ID)
}

// UserByID returns the user or nil.
func (m *Model) UserByID(id ident.Uuid) *chat.User {
	return m.usersByID[id]
}

// UserByToken returns the user holding the token, or nil.
func (m *Model) UserByToken(token ident.Uuid) *chat.User {
	return m.usersByToken[token]
}

// ConversationByID returns the conversation or nil.
func (m *Model) ConversationByID(id ident.Uuid) *chat.Conversation {
	return m.conversationsByID[id]
}

// MessageByID returns the message or nil.
func (m *Model) MessageByID(id ident.Uuid) *chat.Message {
	return m.messagesByID[id]
}

// Users enumerates users in insertion order.
func (m *Model) Users() []*chat.User {
	out := make([]*chat.User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		out = append(out, m.usersByID[id])
	}
	return out
}

// Conversations enumerates conversations in insertion order.
func (m *Model) Conversations() []*chat.Conversation {
	out := make([]*chat.Conversation, 0, len(m.conversationOrder))
	for _, id := range m.conversationOrder {
		out = append(out, m.conversationsByID[id])
	}
	return out
}

// Messages enumerates messages in insertion order.
func (m *Model) Messages() []*chat.Message {
	out := make([]*chat.Message, 0, len(m.messageOrder))
	for _, id := range m.messageOrder {
		out = append(out, m.messagesByID[id])
	}
	return out
}

// MessageCount reports the number of indexed messages.
func (m *Model) MessageCount() int {
	return len(m.messagesByID)
}
