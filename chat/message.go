package chat

import (
	"io"
	"time"

	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

// Message is one entry in a conversation's chain. Next is the only
// field that mutates after construction: it is back-patched when the
// following message is appended.
type Message struct {
	ID       ident.Uuid
	Previous ident.Uuid
	Next     ident.Uuid
	Creation time.Time
	Author   ident.Uuid
	Content  string
}

// MessageSerializer carries a message in the clear.
var MessageSerializer codec.Serializer[Message] = messageSerializer{}

type messageSerializer struct{}

func (messageSerializer) Write(w io.Writer, value Message) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Next); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Previous); err != nil {
		return err
	}
	if err := codec.Time.Write(w, value.Creation); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Author); err != nil {
		return err
	}
	return codec.String.Write(w, value.Content)
}

func (messageSerializer) Read(r io.Reader) (Message, error) {
	var m Message
	var err error
	if m.ID, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Next, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Previous, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Creation, err = codec.Time.Read(r); err != nil {
		return Message{}, err
	}
	if m.Author, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Content, err = codec.String.Read(r); err != nil {
		return Message{}, err
	}
	return m, nil
}

// EncryptedMessage encrypts the content for the recipient; chain
// structure stays in the clear.
var EncryptedMessage codec.EncryptedSerializer[Message] = encryptedMessage{}

type encryptedMessage struct{}

func (encryptedMessage) Write(w io.Writer, value Message, recipient [32]byte) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Next); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Previous); err != nil {
		return err
	}
	if err := codec.Time.Write(w, value.Creation); err != nil {
		return err
	}
	if err := codec.Uuid.Write(w, value.Author); err != nil {
		return err
	}
	return codec.EncryptedString.Write(w, value.Content, recipient)
}

func (encryptedMessage) Read(r io.Reader, keys *crypto.KeyPair) (Message, error) {
	var m Message
	var err error
	if m.ID, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Next, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Previous, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Creation, err = codec.Time.Read(r); err != nil {
		return Message{}, err
	}
	if m.Author, err = codec.Uuid.Read(r); err != nil {
		return Message{}, err
	}
	if m.Content, err = codec.EncryptedString.Read(r, keys); err != nil {
		return Message{}, err
	}
	return m, nil
}
