package codec

import (
	"bytes"
	"io"

	"github.com/ezhuang13/codeu-project-2017/crypto"
)

// EncryptedSerializer encodes a value inside the per-field hybrid
// envelope: a fresh symmetric key seals the serialized value, the key is
// wrapped to the recipient's public key, and both parts travel
// length-prefixed as {wrapped_key, ciphertext}.
type EncryptedSerializer[T any] interface {
	Write(w io.Writer, value T, recipient [32]byte) error
	Read(r io.Reader, keys *crypto.KeyPair) (T, error)
}

// PublicKey carries a 32-byte NaCl public key, length-prefixed like any
// other byte string. It rides in front of every encrypted-request path
// so the server knows where to encrypt responses.
var PublicKey Serializer[[32]byte] = publicKeySerializer{}

type publicKeySerializer struct{}

func (publicKeySerializer) Write(w io.Writer, value [32]byte) error {
	return Bytes.Write(w, value[:])
}

func (publicKeySerializer) Read(r io.Reader) ([32]byte, error) {
	raw, err := Bytes.Read(r)
	if err != nil {
		return [32]byte{}, err
	}
	if len(raw) != 32 {
		return [32]byte{}, fail("public key", ErrBadLength)
	}
	var key [32]byte
	copy(key[:], raw)
	return key, nil
}

type encryptedSerializer[T any] struct {
	inner Serializer[T]
}

// Encrypted wraps a plain serializer in the hybrid envelope. Every call
// draws a fresh symmetric key; no key is reused across fields or calls.
func Encrypted[T any](inner Serializer[T]) EncryptedSerializer[T] {
	return encryptedSerializer[T]{inner: inner}
}

func (s encryptedSerializer[T]) Write(w io.Writer, value T, recipient [32]byte) error {
	var plain bytes.Buffer
	if err := s.inner.Write(&plain, value); err != nil {
		return err
	}

	key, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return fail("envelope", err)
	}
	wrapped, err := crypto.WrapKey(key, recipient)
	if err != nil {
		return fail("envelope", err)
	}
	ciphertext, err := crypto.EncryptSymmetric(plain.Bytes(), key)
	if err != nil {
		return fail("envelope", err)
	}

	if err := Bytes.Write(w, wrapped); err != nil {
		return err
	}
	return Bytes.Write(w, ciphertext)
}

func (s encryptedSerializer[T]) Read(r io.Reader, keys *crypto.KeyPair) (T, error) {
	var zero T

	wrapped, err := Bytes.Read(r)
	if err != nil {
		return zero, err
	}
	ciphertext, err := Bytes.Read(r)
	if err != nil {
		return zero, err
	}

	key, err := crypto.UnwrapKey(wrapped, keys)
	if err != nil {
		return zero, fail("envelope", ErrKeyUnwrap)
	}
	plain, err := crypto.DecryptSymmetric(ciphertext, key)
	if err != nil {
		return zero, fail("envelope", ErrDecrypt)
	}

	return s.inner.Read(bytes.NewReader(plain))
}

// Shorthand envelope serializers for the request fields that are
// encrypted as a whole.
var (
	EncryptedBytes  EncryptedSerializer[[]byte] = Encrypted(Bytes)
	EncryptedString EncryptedSerializer[string] = Encrypted(String)
)

type nullableEncrypted[T any] struct {
	inner EncryptedSerializer[T]
}

// NullableEncrypted lifts an encrypted serializer to pointers with the
// same sentinel-byte scheme as Nullable.
func NullableEncrypted[T any](inner EncryptedSerializer[T]) EncryptedSerializer[*T] {
	return nullableEncrypted[T]{inner: inner}
}

func (s nullableEncrypted[T]) Write(w io.Writer, value *T, recipient [32]byte) error {
	if value == nil {
		if _, err := w.Write([]byte{absentSentinel}); err != nil {
			return fail("nullable", err)
		}
		return nil
	}
	if _, err := w.Write([]byte{presentSentinel}); err != nil {
		return fail("nullable", err)
	}
	return s.inner.Write(w, *value, recipient)
}

func (s nullableEncrypted[T]) Read(r io.Reader, keys *crypto.KeyPair) (*T, error) {
	var sentinel [1]byte
	if err := readFull(r, sentinel[:], "nullable"); err != nil {
		return nil, err
	}
	switch sentinel[0] {
	case absentSentinel:
		return nil, nil
	case presentSentinel:
		value, err := s.inner.Read(r, keys)
		if err != nil {
			return nil, err
		}
		return &value, nil
	default:
		return nil, fail("nullable", ErrBadLength)
	}
}

type sequenceEncrypted[T any] struct {
	inner EncryptedSerializer[T]
}

// SequenceEncrypted lifts an encrypted serializer to slices; each
// element gets its own envelope and therefore its own symmetric key.
func SequenceEncrypted[T any](inner EncryptedSerializer[T]) EncryptedSerializer[[]T] {
	return sequenceEncrypted[T]{inner: inner}
}

func (s sequenceEncrypted[T]) Write(w io.Writer, values []T, recipient [32]byte) error {
	if len(values) > MaxSequenceLength {
		return fail("sequence", ErrBadLength)
	}
	if err := Int32.Write(w, int32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := s.inner.Write(w, v, recipient); err != nil {
			return err
		}
	}
	return nil
}

func (s sequenceEncrypted[T]) Read(r io.Reader, keys *crypto.KeyPair) ([]T, error) {
	count, err := Int32.Read(r)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > MaxSequenceLength {
		return nil, fail("sequence", ErrBadLength)
	}
	values := make([]T, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := s.inner.Read(r, keys)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
