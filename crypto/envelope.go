package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// SymmetricKey is a 32-byte secretbox key. Envelope encryption uses a
// fresh one per field.
type SymmetricKey [32]byte

// MaxPlaintextSize caps a single encrypted field (1MB) to prevent
// excessive memory usage on decode.
const MaxPlaintextSize = 1024 * 1024

const nonceSize = 24

var (
	// ErrKeyUnwrap indicates the wrapped symmetric key could not be
	// opened with the local private key.
	ErrKeyUnwrap = errors.New("key unwrap failed")
	// ErrDecrypt indicates ciphertext authentication failed.
	ErrDecrypt = errors.New("decryption failed")
	// ErrTooLarge indicates a plaintext above MaxPlaintextSize.
	ErrTooLarge = errors.New("plaintext too large")
)

// GenerateSymmetricKey creates a fresh random secretbox key.
func GenerateSymmetricKey() (SymmetricKey, error) {
	var key SymmetricKey
	if _, err := rand.Read(key[:]); err != nil {
		return SymmetricKey{}, err
	}
	return key, nil
}

// WrapKey seals a symmetric key to the recipient's public key. Only the
// recipient's private half can recover it; the sender stays anonymous,
// which is all the protocol needs since authentication happens at the
// token layer.
func WrapKey(key SymmetricKey, recipient [32]byte) ([]byte, error) {
	return box.SealAnonymous(nil, key[:], &recipient, rand.Reader)
}

// UnwrapKey recovers a symmetric key wrapped to our public key.
func UnwrapKey(wrapped []byte, keys *KeyPair) (SymmetricKey, error) {
	opened, ok := box.OpenAnonymous(nil, wrapped, &keys.Public, &keys.Private)
	if !ok || len(opened) != len(SymmetricKey{}) {
		return SymmetricKey{}, ErrKeyUnwrap
	}
	var key SymmetricKey
	copy(key[:], opened)
	return key, nil
}

// EncryptSymmetric seals a payload under a symmetric key. The random
// nonce is prepended to the returned ciphertext.
func EncryptSymmetric(plaintext []byte, key SymmetricKey) ([]byte, error) {
	if len(plaintext) > MaxPlaintextSize {
		return nil, ErrTooLarge
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, (*[32]byte)(&key)), nil
}

// DecryptSymmetric opens a ciphertext produced by EncryptSymmetric.
func DecryptSymmetric(ciphertext []byte, key SymmetricKey) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	opened, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, (*[32]byte)(&key))
	if !ok {
		return nil, ErrDecrypt
	}
	return opened, nil
}
