package chat

import (
	"io"
	"time"

	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
	"github.com/ezhuang13/codeu-project-2017/ident"
)

// User is one logged-in identity. Identities are per-session: every
// login allocates a fresh User with a fresh token, sharing only the
// username with earlier sessions of the same account.
type User struct {
	ID       ident.Uuid
	Name     string
	Creation time.Time

	// Token authenticates subsequent requests. It is set only after a
	// successful login and deliberately excluded from both serializers;
	// the login response carries it exactly once, in its own field.
	Token ident.Uuid
}

// UserSerializer carries a user in the clear (id, name, creation).
var UserSerializer codec.Serializer[User] = userSerializer{}

type userSerializer struct{}

func (userSerializer) Write(w io.Writer, value User) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.String.Write(w, value.Name); err != nil {
		return err
	}
	return codec.Time.Write(w, value.Creation)
}

func (userSerializer) Read(r io.Reader) (User, error) {
	id, err := codec.Uuid.Read(r)
	if err != nil {
		return User{}, err
	}
	name, err := codec.String.Read(r)
	if err != nil {
		return User{}, err
	}
	creation, err := codec.Time.Read(r)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Name: name, Creation: creation}, nil
}

// EncryptedUser is the envelope variant: the name is encrypted for the
// recipient, id and creation stay in the clear.
var EncryptedUser codec.EncryptedSerializer[User] = encryptedUser{}

type encryptedUser struct{}

func (encryptedUser) Write(w io.Writer, value User, recipient [32]byte) error {
	if err := codec.Uuid.Write(w, value.ID); err != nil {
		return err
	}
	if err := codec.EncryptedString.Write(w, value.Name, recipient); err != nil {
		return err
	}
	return codec.Time.Write(w, value.Creation)
}

func (encryptedUser) Read(r io.Reader, keys *crypto.KeyPair) (User, error) {
	id, err := codec.Uuid.Read(r)
	if err != nil {
		return User{}, err
	}
	name, err := codec.EncryptedString.Read(r, keys)
	if err != nil {
		return User{}, err
	}
	creation, err := codec.Time.Read(r)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Name: name, Creation: creation}, nil
}
