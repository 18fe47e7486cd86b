// Package client is the wire-level counterpart of the server: it
// encodes requests, encrypts the sensitive fields to the server's
// public key, and decrypts responses with its own session key pair.
//
// A Client generates one key pair at construction and ships the public
// half on every encrypted-request path, so the server knows where to
// encrypt responses. Each call opens one connection for one
// request/response exchange.
package client

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/chat"
	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
	"github.com/ezhuang13/codeu-project-2017/transport"
)

// Client talks the chat wire protocol to one server.
type Client struct {
	source    transport.ConnectionSource
	keys      *crypto.KeyPair
	serverKey [32]byte
	log       *logrus.Entry
}

// New creates a client, generating its session key pair and fetching
// the server's public key.
func New(source transport.ConnectionSource) (*Client, error) {
	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("client keys: %w", err)
	}

	c := &Client{
		source: source,
		keys:   keys,
		log:    logrus.WithField("component", "client"),
	}
	if err := c.fetchServerKey(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) fetchServerKey() error {
	conn, err := c.source.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpServerPublicKeyRequest); err != nil {
		return err
	}
	if err := c.expect(conn, chat.OpServerPublicKeyResponse); err != nil {
		return err
	}

	algorithm, err := codec.String.Read(conn)
	if err != nil {
		return err
	}
	if algorithm != crypto.Algorithm {
		return fmt.Errorf("server speaks %q, want %q", algorithm, crypto.Algorithm)
	}
	key, err := codec.Bytes.Read(conn)
	if err != nil {
		return err
	}
	if len(key) != 32 {
		return fmt.Errorf("server public key has %d bytes", len(key))
	}
	copy(c.serverKey[:], key)
	return nil
}

func (c *Client) expect(conn transport.Connection, want chat.Opcode) error {
	op, err := chat.ReadOpcode(conn)
	if err != nil {
		return err
	}
	if op != want {
		return fmt.Errorf("unexpected response %v, want %v", op, want)
	}
	return nil
}

// Register creates an account and returns the auth result code.
func (c *Client) Register(username, password string) (int, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpNewUserRequest); err != nil {
		return 0, err
	}
	if err := codec.EncryptedString.Write(conn, username, c.serverKey); err != nil {
		return 0, err
	}
	if err := codec.EncryptedString.Write(conn, password, c.serverKey); err != nil {
		return 0, err
	}

	if err := c.expect(conn, chat.OpNewUserResponse); err != nil {
		return 0, err
	}
	result, err := codec.Int32.Read(conn)
	return int(result), err
}

// Login authenticates and returns the session user, token set. A nil
// user with nil error means the credentials were rejected.
func (c *Client) Login(username, password string) (*chat.User, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpLoginRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.EncryptedString.Write(conn, username, c.serverKey); err != nil {
		return nil, err
	}
	if err := codec.EncryptedString.Write(conn, password, c.serverKey); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpLoginResponse); err != nil {
		return nil, err
	}
	user, err := codec.NullableEncrypted(chat.EncryptedUser).Read(conn, c.keys)
	if err != nil {
		return nil, err
	}
	token, err := codec.Nullable(codec.Uuid).Read(conn)
	if err != nil {
		return nil, err
	}
	if user == nil || token == nil {
		return nil, nil
	}
	user.Token = *token
	return user, nil
}

// NewConversation creates a conversation owned by the token holder. A
// nil conversation with nil error means the server rejected the token.
func (c *Client) NewConversation(title string, owner, token ident.Uuid) (*chat.Conversation, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpNewConversationRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.EncryptedString.Write(conn, title, c.serverKey); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, owner); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, token); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpNewConversationResponse); err != nil {
		return nil, err
	}
	return codec.NullableEncrypted(chat.EncryptedConversation).Read(conn, c.keys)
}

// NewMessage appends a message to the conversation. A nil message with
// nil error means the server rejected the request.
func (c *Client) NewMessage(author, token, conversation ident.Uuid, body string) (*chat.Message, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpNewMessageRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, author); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, token); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, conversation); err != nil {
		return nil, err
	}
	if err := codec.EncryptedString.Write(conn, body, c.serverKey); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpNewMessageResponse); err != nil {
		return nil, err
	}
	return codec.NullableEncrypted(chat.EncryptedMessage).Read(conn, c.keys)
}

// UsersByID fetches the users matching the given ids.
func (c *Client) UsersByID(ids []ident.Uuid) ([]chat.User, error) {
	return c.userQuery(chat.OpGetUsersByIDRequest, chat.OpGetUsersByIDResponse, ids)
}

// UsersExcluding fetches every user not in the given id set.
func (c *Client) UsersExcluding(ids []ident.Uuid) ([]chat.User, error) {
	return c.userQuery(chat.OpGetUsersExcludingRequest, chat.OpGetUsersExcludingResponse, ids)
}

func (c *Client) userQuery(request, response chat.Opcode, ids []ident.Uuid) ([]chat.User, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, request); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Sequence(codec.Uuid).Write(conn, ids); err != nil {
		return nil, err
	}

	if err := c.expect(conn, response); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedUser).Read(conn, c.keys)
}

// AllConversations fetches the summary listing of every conversation.
func (c *Client) AllConversations() ([]chat.ConversationSummary, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetAllConversationsRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetAllConversationsResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedSummary).Read(conn, c.keys)
}

// ConversationsByID fetches the conversations matching the given ids.
func (c *Client) ConversationsByID(ids []ident.Uuid) ([]chat.Conversation, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetConversationsByIDRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Sequence(codec.Uuid).Write(conn, ids); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetConversationsByIDResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedConversation).Read(conn, c.keys)
}

// ConversationsInRange fetches conversations created inside the
// inclusive time window.
func (c *Client) ConversationsInRange(start, end time.Time) ([]chat.Conversation, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetConversationsByTimeRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Time.Write(conn, start); err != nil {
		return nil, err
	}
	if err := codec.Time.Write(conn, end); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetConversationsByTimeResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedConversation).Read(conn, c.keys)
}

// ConversationsByTitle fetches conversations whose title contains the
// filter.
func (c *Client) ConversationsByTitle(filter string) ([]chat.Conversation, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetConversationsByTitleRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.EncryptedString.Write(conn, filter, c.serverKey); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetConversationsByTitleResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedConversation).Read(conn, c.keys)
}

// MessagesByID fetches the messages matching the given ids.
func (c *Client) MessagesByID(ids []ident.Uuid) ([]chat.Message, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetMessagesByIDRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Sequence(codec.Uuid).Write(conn, ids); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetMessagesByIDResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedMessage).Read(conn, c.keys)
}

// MessagesInRange fetches messages created inside the inclusive time
// window.
func (c *Client) MessagesInRange(start, end time.Time) ([]chat.Message, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetMessagesByTimeRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Time.Write(conn, start); err != nil {
		return nil, err
	}
	if err := codec.Time.Write(conn, end); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetMessagesByTimeResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedMessage).Read(conn, c.keys)
}

// MessagesFromRoot fetches up to count messages walking the chain from
// the root; a negative count walks backwards.
func (c *Client) MessagesFromRoot(root ident.Uuid, count int32) ([]chat.Message, error) {
	conn, err := c.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := chat.WriteOpcode(conn, chat.OpGetMessagesByRangeRequest); err != nil {
		return nil, err
	}
	if err := codec.PublicKey.Write(conn, c.keys.Public); err != nil {
		return nil, err
	}
	if err := codec.Uuid.Write(conn, root); err != nil {
		return nil, err
	}
	if err := codec.Int32.Write(conn, count); err != nil {
		return nil, err
	}

	if err := c.expect(conn, chat.OpGetMessagesByRangeResponse); err != nil {
		return nil, err
	}
	return codec.SequenceEncrypted(chat.EncryptedMessage).Read(conn, c.keys)
}
