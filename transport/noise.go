package transport

import (
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/codec"
	"github.com/ezhuang13/codeu-project-2017/crypto"
)

// ErrHandshakeFailed indicates the Noise handshake did not complete.
var ErrHandshakeFailed = errors.New("noise handshake failed")

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// NoiseSource wraps another source with a Noise-XX encrypted channel.
// Both sides authenticate with their long-lived key pair during the
// handshake; afterwards every Write travels as one length-prefixed
// encrypted frame.
type NoiseSource struct {
	inner     ConnectionSource
	keys      *crypto.KeyPair
	initiator bool
}

// SecureSource wraps a source in Noise-XX. The side that dials must
// pass initiator=true, the side that accepts initiator=false.
func SecureSource(inner ConnectionSource, keys *crypto.KeyPair, initiator bool) *NoiseSource {
	return &NoiseSource{inner: inner, keys: keys, initiator: initiator}
}

// Connect obtains a connection from the wrapped source and runs the
// handshake on it before handing it out.
func (s *NoiseSource) Connect() (Connection, error) {
	raw, err := s.inner.Connect()
	if err != nil {
		return nil, err
	}

	secured, err := Secure(raw, s.keys, s.initiator)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return secured, nil
}

// Close closes the wrapped source.
func (s *NoiseSource) Close() error {
	return s.inner.Close()
}

// NoiseConn is a Connection carrying length-prefixed Noise frames.
type NoiseConn struct {
	raw  Connection
	send *noise.CipherState
	recv *noise.CipherState

	// leftover plaintext from the last frame, for partial reads.
	pending []byte
}

// Secure runs the Noise-XX handshake over a raw connection and returns
// the encrypted stream. Handshake messages are length-prefixed with the
// same 4-byte scheme as every other byte string on the wire.
func Secure(raw Connection, keys *crypto.KeyPair, initiator bool) (*NoiseConn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite,
		Pattern:     noise.HandshakeXX,
		Initiator:   initiator,
		StaticKeypair: noise.DHKey{
			Private: keys.Private[:],
			Public:  keys.Public[:],
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	var send, recv *noise.CipherState
	if initiator {
		send, recv, err = runInitiatorHandshake(raw, hs)
	} else {
		send, recv, err = runResponderHandshake(raw, hs)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Secure",
		"initiator": initiator,
	}).Debug("Noise handshake complete")

	return &NoiseConn{raw: raw, send: send, recv: recv}, nil
}

func runInitiatorHandshake(raw Connection, hs *noise.HandshakeState) (send, recv *noise.CipherState, err error) {
	// XX: -> e
	msg, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := codec.Bytes.Write(raw, msg); err != nil {
		return nil, nil, err
	}

	// XX: <- e, ee, s, es
	reply, err := codec.Bytes.Read(raw)
	if err != nil {
		return nil, nil, err
	}
	if _, _, _, err := hs.ReadMessage(nil, reply); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	// XX: -> s, se
	msg, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := codec.Bytes.Write(raw, msg); err != nil {
		return nil, nil, err
	}
	return cs1, cs2, nil
}

func runResponderHandshake(raw Connection, hs *noise.HandshakeState) (send, recv *noise.CipherState, err error) {
	msg, err := codec.Bytes.Read(raw)
	if err != nil {
		return nil, nil, err
	}
	if _, _, _, err := hs.ReadMessage(nil, msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	reply, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := codec.Bytes.Write(raw, reply); err != nil {
		return nil, nil, err
	}

	final, err := codec.Bytes.Read(raw)
	if err != nil {
		return nil, nil, err
	}
	_, cs1, cs2, err := hs.ReadMessage(nil, final)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	// The responder sends on the second cipher state.
	return cs2, cs1, nil
}

// Read returns decrypted bytes, fetching and decrypting the next frame
// when the previous one is exhausted.
func (c *NoiseConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		frame, err := codec.Bytes.Read(c.raw)
		if err != nil {
			return 0, err
		}
		plain, err := c.recv.Decrypt(nil, nil, frame)
		if err != nil {
			return 0, fmt.Errorf("noise decrypt: %w", err)
		}
		c.pending = plain
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write encrypts p as a single frame.
func (c *NoiseConn) Write(p []byte) (int, error) {
	frame, err := c.send.Encrypt(nil, nil, p)
	if err != nil {
		return 0, fmt.Errorf("noise encrypt: %w", err)
	}
	if err := codec.Bytes.Write(c.raw, frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying connection.
func (c *NoiseConn) Close() error {
	return c.raw.Close()
}
