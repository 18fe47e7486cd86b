package chat

import (
	"io"
	"time"

	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

// Conversation is one message chain with its membership. FirstMessage
// and LastMessage are Null while the conversation is empty; Members
// holds exactly the users who have authored at least one message here.
type Conversation struct {
	ID       ident.Uuid
	Owner    ident.Uuid
	Creation time.Time
	Title    string

	FirstMessage ident.Uuid
	LastMessage  ident.Uuid
	Members      []ident.Uuid
}

// HasMember reports whether the user already appears in Members.
func (c *Conversation) HasMember(user ident.Uuid) bool {
	for _, m := range c.Members {
		if m == user {
			return true
		}
	}
	return false
}

// Summary returns the listing projection of the conversation.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:       c.ID,
		Owner:    c.Owner,
		Creation: c.Creation,
		Title:    c.Title,
	}
}

// ConversationSummary is the light projection used by the
// all-conversations listing.
type ConversationSummary struct {
	ID       ident.Uuid
	Owner    ident.Uuid
	Creation time.Time
	Title    string
}

// ConversationSerializer carries a full conversation in the clear.
var ConversationSerializer codec.Serializer[Conversation] = conversationSerializer{}

type conversationSerializer struct{}

func (conversationSerializer) Write(w io.Writer, value Conversation) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Owner); err != nil {
		return err
	}
	if err := codec.Time.Write(w, value.Creation); err != nil {
		return err
	}
	if err := codec.String.Write(w, value.Title); err != nil {
		return err
	}
	if err := codec.Sequence(codec.Uuid).Write(w, value.Members); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.FirstMessage); err != nil {
		return err
	}
	return codec.Uuid.Write(w, value.LastMessage)
}

func (conversationSerializer) Read(r io.Reader) (Conversation, error) {
	var c Conversation
	var err error
	if c.ID, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Owner, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Creation, err = codec.Time.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Title, err = codec.String.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Members, err = codec.Sequence(codec.Uuid).Read(r); err != nil {
		return Conversation{}, err
	}
	if c.FirstMessage, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.LastMessage, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// EncryptedConversation encrypts the title for the recipient; structure
// and ids stay in the clear.
var EncryptedConversation codec.EncryptedSerializer[Conversation] = encryptedConversation{}

type encryptedConversation struct{}

func (encryptedConversation) Write(w io.Writer, value Conversation, recipient [32]byte) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Owner); err != nil {
		return err
	}
	if err := codec.Time.Write(w, value.Creation); err != nil {
		return err
	}
	if err := codec.EncryptedString.Write(w, value.Title, recipient); err != nil {
		return err
	}
	if err := codec.Sequence(codec.Uuid).Write(w, value.Members); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.FirstMessage); err != nil {
		return err
	}
	return codec.Uuid.Write(w, value.LastMessage)
}

func (encryptedConversation) Read(r io.Reader, keys *crypto.KeyPair) (Conversation, error) {
	var c Conversation
	var err error
	if c.ID, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Owner, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Creation, err = codec.Time.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.Title, err = codec.EncryptedString.Read(r, keys); err != nil {
		return Conversation{}, err
	}
	if c.Members, err = codec.Sequence(codec.Uuid).Read(r); err != nil {
		return Conversation{}, err
	}
	if c.FirstMessage, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	if c.LastMessage, err = codec.Uuid.Read(r); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// EncryptedSummary encrypts the title of a listing entry.
var EncryptedSummary codec.EncryptedSerializer[ConversationSummary] = encryptedSummary{}

type encryptedSummary struct{}

func (encryptedSummary) Write(w io.Writer, value ConversationSummary, recipient [32]byte) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Owner); err != nil {
		return err
	}
	if err := codec.Time.Write(w, value.Creation); err != nil {
		return err
	}
	return codec.EncryptedString.Write(w, value.Title, recipient)
}

func (encryptedSummary) Read(r io.Reader, keys *crypto.KeyPair) (ConversationSummary, error) {
	var s ConversationSummary
	var err error
	if s.ID, err = codec.Uuid.Read(r); err != nil {
		return ConversationSummary{}, err
	}
	if s.Owner, err = codec.Uuid.Read(r); err != nil {
		return ConversationSummary{}, err
	}
	if s.Creation, err = codec.Time.Read(r); err != nil {
		return ConversationSummary{}, err
	}
	if s.Title, err = codec.EncryptedString.Read(r, keys); err != nil {
		return ConversationSummary{}, err
	}
	return s, nil
}
