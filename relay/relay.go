package relay

import (
	"crypto/subtle"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ezhuang13/codeu-project-2017/ident"
)

// Relay is the store-and-forward contract between servers. Write pushes
// one bundle; Read pulls bundles retained after the caller's lastSeen
// watermark, oldest first, up to max.
type Relay interface {
	Read(serverID ident.Uuid, secret []byte, lastSeen ident.Uuid, max int) ([]Bundle, error)
	Write(serverID ident.Uuid, secret []byte, user, conversation, message Component) (bool, error)
}

// NoOp is the relay for a standalone server: writes vanish, reads are
// always empty.
type NoOp struct{}

func (NoOp) Read(ident.Uuid, []byte, ident.Uuid, int) ([]Bundle, error) {
	return nil, nil
}

func (NoOp) Write(ident.Uuid, []byte, Component, Component, Component) (bool, error) {
	return true, nil
}

// Memory retains bundles in arrival order. It backs the relay process
// and the federation tests. Safe for concurrent use.
//
// With no servers registered the relay is open and accepts any caller.
// Once RegisterServer has been called, every Read and Write must present
// a registered id with its matching secret.
type Memory struct {
	mu        sync.Mutex
	bundles   []Bundle
	positions map[ident.Uuid]int
	secrets   map[ident.Uuid][]byte
	generator ident.Generator
	log       *logrus.Entry
}

// NewMemory creates an empty relay. Bundle ids descend from the given
// root so they never collide with server-allocated ids.
func NewMemory(root ident.Uuid) *Memory {
	return &Memory{
		positions: make(map[ident.Uuid]int),
		secrets:   make(map[ident.Uuid][]byte),
		generator: ident.NewRandomGenerator(root),
		log:       logrus.WithField("component", "relay"),
	}
}

// RegisterServer admits a server id with its shared secret. The first
// registration switches the relay from open to verifying.
func (m *Memory) RegisterServer(id ident.Uuid, secret []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[id] = append([]byte(nil), secret...)
}

func (m *Memory) authorized(id ident.Uuid, secret []byte) bool {
	if len(m.secrets) == 0 {
		return true
	}
	expected, ok := m.secrets[id]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(expected, secret) == 1
}

// Read returns up to max bundles retained after lastSeen, oldest first.
// A Null or unknown watermark reads from the beginning; replays are
// safe because merging is idempotent.
func (m *Memory) Read(serverID ident.Uuid, secret []byte, lastSeen ident.Uuid, max int) ([]Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorized(serverID, secret) {
		m.log.WithFields(logrus.Fields{
			"function": "Read",
			"server":   serverID.String(),
		}).Warn("Rejected read from unauthorized server")
		return nil, nil
	}

	start := 0
	if pos, ok := m.positions[lastSeen]; ok {
		start = pos + 1
	}
	if max < 0 {
		max = 0
	}

	end := start + max
	if end > len(m.bundles) {
		end = len(m.bundles)
	}
	if start >= end {
		return nil, nil
	}

	out := make([]Bundle, end-start)
	copy(out, m.bundles[start:end])
	return out, nil
}

// Write retains a new bundle, allocating its id. Returns false when the
// caller is not authorized.
func (m *Memory) Write(serverID ident.Uuid, secret []byte, user, conversation, message Component) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authorized(serverID, secret) {
		m.log.WithFields(logrus.Fields{
			"function": "Write",
			"server":   serverID.String(),
		}).Warn("Rejected write from unauthorized server")
		return false, nil
	}

	id := m.generator.Make()
	for {
		if _, taken := m.positions[id]; !taken {
			break
		}
		id = m.generator.Make()
	}

	m.positions[id] = len(m.bundles)
	m.bundles = append(m.bundles, Bundle{
		ID:           id,
		User:         user,
		Conversation: conversation,
		Message:      message,
	})

	m.log.WithFields(logrus.Fields{
		"function": "Write",
		"server":   serverID.String(),
		"bundle":   id.String(),
		"retained": len(m.bundles),
	}).Debug("Bundle retained")
	return true, nil
}

// Len reports how many bundles the relay currently retains.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bundles)
}
