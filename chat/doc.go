// Package chat defines the domain objects shared by server and client
// (users, conversations, messages) together with their wire serializers
// and the protocol opcode set.
//
// Every wire exchange is one request frame followed by one response
// frame: a 4-byte opcode, then opcode-specific fields encoded by the
// codec package. Sensitive text fields (names, titles, message bodies)
// travel inside per-field encryption envelopes; ids and timestamps
// travel in the clear.
package chat
