package ident

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// Generator produces candidate identifiers. Callers that need uniqueness
// against live state must check candidates themselves; see the server
// controller's createId loop.
type Generator interface {
	Make() Uuid
}

// RandomGenerator derives ids from a fixed root (the allocating server's
// identity) plus one random component per id. With 32 bits of secure
// randomness per component, collisions against a live index are expected
// to be resolved in O(1) regenerations.
type RandomGenerator struct {
	root Uuid
}

// NewRandomGenerator returns a generator whose ids all share the given
// root. A Null root is allowed and produces single-component ids.
func NewRandomGenerator(root Uuid) *RandomGenerator {
	return &RandomGenerator{root: root}
}

// Make returns a fresh candidate id.
func (g *RandomGenerator) Make() Uuid {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failure is unrecoverable at this layer; every id
		// and token in the system depends on it.
		logrus.WithFields(logrus.Fields{
			"function": "Make",
			"error":    err,
		}).Fatal("Failed to read random bytes for id generation")
	}
	return g.root.Extend(binary.BigEndian.Uint32(buf[:]))
}
