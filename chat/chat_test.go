package chat

import (
	"bytes"
	"testing"
	"time"

	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

var testTime = time.Date(2017, time.May, 3, 14, 0, 0, 0, time.UTC)

func TestUserSerializers(t *testing.T) {
	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	user := User{
		ID:       ident.FromComponents(1, 42),
		Name:     "alice",
		Creation: testTime,
		Token:    ident.FromComponents(1, 99),
	}

	var plain bytes.Buffer
	if err := UserSerializer.Write(&plain, user); err != nil {
		t.Fatalf("UserSerializer.Write error: %v", err)
	}
	got, err := UserSerializer.Read(&plain)
	if err != nil {
		t.Fatalf("UserSerializer.Read error: %v", err)
	}
	if got.ID != user.ID || got.Name != user.Name || !got.Creation.Equal(user.Creation) {
		t.Errorf("plain round trip = %+v", got)
	}
	if !got.Token.IsNull() {
		t.Error("token must never travel in the user serializer")
	}

	var enc bytes.Buffer
	if err := EncryptedUser.Write(&enc, user, keys.Public); err != nil {
		t.Fatalf("EncryptedUser.Write error: %v", err)
	}
	if bytes.Contains(enc.Bytes(), []byte("alice")) {
		t.Error("encrypted serializer leaked the username")
	}
	got, err = EncryptedUser.Read(&enc, keys)
	if err != nil {
		t.Fatalf("EncryptedUser.Read error: %v", err)
	}
	if got.Name != "alice" {
		t.Errorf("encrypted round trip name = %q", got.Name)
	}
}

func TestConversationSerializers(t *testing.T) {
	keys, _ := crypto.GenerateKeyPair()

	conversation := Conversation{
		ID:           ident.FromComponents(1, 7),
		Owner:        ident.FromComponents(1, 42),
		Creation:     testTime,
		Title:        "project planning",
		FirstMessage: ident.FromComponents(1, 100),
		LastMessage:  ident.FromComponents(1, 101),
		Members:      []ident.Uuid{ident.FromComponents(1, 42)},
	}

	var buf bytes.Buffer
	if err := EncryptedConversation.Write(&buf, conversation, keys.Public); err != nil {
		t.Fatalf("EncryptedConversation.Write error: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("project planning")) {
		t.Error("encrypted serializer leaked the title")
	}
	got, err := EncryptedConversation.Read(&buf, keys)
	if err != nil {
		t.Fatalf("EncryptedConversation.Read error: %v", err)
	}
	if got.Title != conversation.Title ||
		got.FirstMessage != conversation.FirstMessage ||
		got.LastMessage != conversation.LastMessage ||
		len(got.Members) != 1 || got.Members[0] != conversation.Members[0] {
		t.Errorf("round trip = %+v", got)
	}
}

func TestMessageSerializers(t *testing.T) {
	keys, _ := crypto.GenerateKeyPair()

	message := Message{
		ID:       ident.FromComponents(1, 100),
		Previous: ident.FromComponents(1, 99),
		Next:     ident.Null,
		Creation: testTime,
		Author:   ident.FromComponents(1, 42),
		Content:  "hi there",
	}

	var buf bytes.Buffer
	if err := EncryptedMessage.Write(&buf, message, keys.Public); err != nil {
		t.Fatalf("EncryptedMessage.Write error: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("hi there")) {
		t.Error("encrypted serializer leaked the body")
	}
	got, err := EncryptedMessage.Read(&buf, keys)
	if err != nil {
		t.Fatalf("EncryptedMessage.Read error: %v", err)
	}
	if got != message {
		t.Errorf("round trip = %+v, want %+v", got, message)
	}
}

func TestHasMember(t *testing.T) {
	c := Conversation{Members: []ident.Uuid{ident.FromComponents(1, 2)}}

	if !c.HasMember(ident.FromComponents(1, 2)) {
		t.Error("HasMember missed an existing member")
	}
	if c.HasMember(ident.FromComponents(1, 3)) {
		t.Error("HasMember reported a non-member")
	}
}

func TestOpcodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOpcode(&buf, OpLoginRequest); err != nil {
		t.Fatalf("WriteOpcode error: %v", err)
	}
	got, err := ReadOpcode(&buf)
	if err != nil {
		t.Fatalf("ReadOpcode error: %v", err)
	}
	if got != OpLoginRequest {
		t.Errorf("opcode round trip = %v", got)
	}
	if got.String() != "LOGIN_REQUEST" {
		t.Errorf("String() = %q", got.String())
	}
}
