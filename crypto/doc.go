// Package crypto implements the cryptographic primitives behind the
// chat protocol's per-field envelope encryption.
//
// The scheme is hybrid: every encrypted field gets a fresh random
// symmetric key, the serialized payload is sealed with that key
// (NaCl secretbox), and the key itself is wrapped to the recipient's
// public key (anonymous NaCl box). One asymmetric operation per field
// bounds the blast radius of any single key compromise; no symmetric
// key is ever reused across fields or calls.
//
// Example:
//
//	keys, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sym, _ := crypto.GenerateSymmetricKey()
//	wrapped, _ := crypto.WrapKey(sym, keys.Public)
//	unwrapped, _ := crypto.UnwrapKey(wrapped, keys)
package crypto
