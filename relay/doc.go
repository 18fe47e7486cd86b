// Package relay implements the best-effort replication channel between
// chat servers.
//
// A bundle is the minimal cross-server unit: one user, one conversation
// and one message component, just enough to reconstruct a single
// message in context on another server. Servers push a bundle after
// each locally accepted message and periodically pull bundles newer
// than their lastSeen watermark. The relay retains bundles in arrival
// order and never interprets them; merging is the servers' job and is
// idempotent, so replays are harmless.
//
// Three implementations of the Relay interface live here: NoOp for
// standalone servers, Memory for the relay process itself and for
// tests, and Remote for talking to a relay over a Connection.
package relay
