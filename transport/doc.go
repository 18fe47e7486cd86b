// Package transport provides the opaque byte-stream boundary between
// the chat core and the network.
//
// The core never touches sockets. It sees a Connection (a bidirectional
// byte stream) obtained from a ConnectionSource: a listening source
// yields accepted connections, a dialing source yields outbound ones.
// An optional Noise-XX secured source wraps any other source with an
// authenticated encrypted channel, used for server-to-relay links.
package transport
