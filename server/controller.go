package server

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/auth"
	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/storage"
)

// Controller implements every mutation of the model. All methods must
// run inside queue tasks; the controller holds no locks of its own.
//
// Failed preconditions return nil (or a negative result code) and leave
// the model untouched. Rejection is a normal outcome, not an error.
type Controller struct {
	model     *Model
	auth      *auth.Authentication
	store     *storage.Storage
	generator ident.Generator
	log       *logrus.Entry

	// usernames maps a session user id back to its account name, for
	// persisting that account's new conversations.
	usernames map[ident.Uuid]string
	// records maps a session conversation id to its storage record, for
	// persisting messages appended to it. Conversations merged from the
	// relay have no record and are not persisted locally.
	records map[ident.Uuid]string
}

// NewController creates a controller over the model. auth and store may
// be nil, disabling registration/login and history replay respectively.
func NewController(model *Model, authn *auth.Authentication, store *storage.Storage, generator ident.Generator) *Controller {
	return &Controller{
		model:     model,
		auth:      authn,
		store:     store,
		generator: generator,
		log:       logrus.WithField("component", "controller"),
		usernames: make(map[ident.Uuid]string),
		records:   make(map[ident.Uuid]string),
	}
}

// createId allocates an id that is free across all four indices.
// Collisions are resolved by regeneration; with 32 random bits per
// component this loop is expected to exit on the first try.
func (c *Controller) createId() ident.Uuid {
	id := c.generator.Make()
	for c.model.HasID(id) {
		id = c.generator.Make()
	}
	return id
}

// CheckToken reports whether the token is the user's current one. A
// Null token never matches.
func (c *Controller) CheckToken(userID, token ident.Uuid) bool {
	if token.IsNull() {
		return false
	}
	user := c.model.UserByID(userID)
	return user != nil && user.Token == token
}

// NewUser registers an account and returns an auth result code.
func (c *Controller) NewUser(username, password string) int {
	if c.auth == nil {
		return auth.ErrInternal
	}
	return c.auth.Register(username, password)
}

// Login authenticates and, on success, allocates a fresh session
// identity with a fresh token. Identities are per-session: a second
// login of the same account yields a distinct user id. The account's
// stored history is replayed into the model as newly-created local
// objects.
func (c *Controller) Login(username, password string) *chat.User {
	if c.auth == nil || c.auth.Login(username, password) != auth.Success {
		return nil
	}

	user := &chat.User{
		ID:       c.createId(),
		Name:     username,
		Creation: time.Now().UTC(),
		Token:    c.createId(),
	}
	c.model.AddUser(user)
	c.usernames[user.ID] = username

	c.log.WithFields(logrus.Fields{
		"function": "Login",
		"username": username,
		"id":       user.ID.String(),
	}).Info("User logged in")

	c.replayHistory(user)
	return user
}

// replayHistory loads the account's stored conversations and messages
// and re-creates them with fresh local ids. A replay failure is logged
// and does not fail the login.
func (c *Controller) replayHistory(user *chat.User) {
	if c.store == nil {
		return
	}

	history, err := c.store.LoadConversations(user.Name)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "replayHistory",
			"username": user.Name,
			"error":    err,
		}).Warn("Failed to load stored history")
		return
	}

	for _, stored := range history {
		conversation := &chat.Conversation{
			ID:       c.createId(),
			Owner:    user.ID,
			Creation: stored.Creation,
			Title:    stored.Title,
		}
		c.model.AddConversation(conversation)
		c.records[conversation.ID] = stored.ID

		for _, m := range stored.Messages {
			message := &chat.Message{
				ID:       c.createId(),
				Creation: m.Creation,
				Author:   user.ID,
				Content:  m.Content,
			}
			c.model.AddMessage(message)
			c.appendToChain(message, conversation)
		}
	}
}

// NewConversation creates a conversation owned by the token holder.
func (c *Controller) NewConversation(title string, owner, token ident.Uuid) *chat.Conversation {
	if !c.CheckToken(owner, token) {
		c.log.WithFields(logrus.Fields{
			"function": "NewConversation",
			"owner":    owner.String(),
		}).Warn("Rejected conversation creation with bad token")
		return nil
	}

	conversation := &chat.Conversation{
		ID:       c.createId(),
		Owner:    owner,
		Creation: time.Now().UTC(),
		Title:    title,
	}
	c.model.AddConversation(conversation)
	c.persistConversation(conversation)
	return conversation
}

func (c *Controller) persistConversation(conversation *chat.Conversation) {
	if c.store == nil {
		return
	}
	username, ok := c.usernames[conversation.Owner]
	if !ok {
		return
	}
	record, err := c.store.AddConversation(username, conversation.Creation, conversation.Title)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "persistConversation",
			"error":    err,
		}).Warn("Failed to persist conversation")
		return
	}
	c.records[conversation.ID] = record
}

// NewMessage appends a message to a conversation's chain. The author's
// token must be valid and the conversation must exist; otherwise no
// mutation happens.
func (c *Controller) NewMessage(author, token, conversationID ident.Uuid, body string) *chat.Message {
	if !c.CheckToken(author, token) {
		c.log.WithFields(logrus.Fields{
			"function": "NewMessage",
			"author":   author.String(),
		}).Warn("Rejected message with bad token")
		return nil
	}

	conversation := c.model.ConversationByID(conversationID)
	if conversation == nil {
		c.log.WithFields(logrus.Fields{
			"function":     "NewMessage",
			"conversation": conversationID.String(),
		}).Warn("Rejected message to unknown conversation")
		return nil
	}

	message := &chat.Message{
		ID:       c.createId(),
		Creation: time.Now().UTC(),
		Author:   author,
		Content:  body,
	}
	c.model.AddMessage(message)
	c.appendToChain(message, conversation)
	c.persistMessage(conversation, message)
	return message
}

func (c *Controller) persistMessage(conversation *chat.Conversation, message *chat.Message) {
	if c.store == nil {
		return
	}
	record, ok := c.records[conversation.ID]
	if !ok {
		return
	}
	if err := c.store.AddMessage(record, message.Creation, message.Content); err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "persistMessage",
			"error":    err,
		}).Warn("Failed to persist message")
	}
}

// appendToChain links the message onto the conversation's chain,
// back-patching the previous tail's Next pointer, and adds the author
// to the membership if absent.
func (c *Controller) appendToChain(message *chat.Message, conversation *chat.Conversation) {
	if conversation.LastMessage.IsNull() {
		conversation.FirstMessage = message.ID
	} else {
		tail := c.model.MessageByID(conversation.LastMessage)
		tail.Next = message.ID
		message.Previous = tail.ID
	}
	conversation.LastMessage = message.ID

	if !conversation.HasMember(message.Author) {
		conversation.Members = append(conversation.Members, message.Author)
	}
}

// AddConversationRaw creates a conversation with a caller-supplied id
// and creation time. The relay merge path uses it so the remote
// conversation id is preserved locally. The owner must exist and the id
// must be free.
func (c *Controller) AddConversationRaw(id, owner ident.Uuid, creation time.Time, title string) *chat.Conversation {
	if c.model.UserByID(owner) == nil || c.model.HasID(id) {
		return nil
	}

	conversation := &chat.Conversation{
		ID:       id,
		Owner:    owner,
		Creation: creation,
		Title:    title,
	}
	c.model.AddConversation(conversation)
	return conversation
}

// AddMessageRaw appends a message with a caller-supplied id and
// creation time, for the relay merge path. Author and conversation must
// exist and the id must be free.
func (c *Controller) AddMessageRaw(id, author, conversationID ident.Uuid, creation time.Time, content string) *chat.Message {
	if c.model.UserByID(author) == nil || c.model.HasID(id) {
		return nil
	}
	conversation := c.model.ConversationByID(conversationID)
	if conversation == nil {
		return nil
	}

	message := &chat.Message{
		ID:       id,
		Creation: creation,
		Author:   author,
		Content:  content,
	}
	c.model.AddMessage(message)
	c.appendToChain(message, conversation)
	return message
}
