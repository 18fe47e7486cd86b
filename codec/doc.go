// Package codec implements the length-prefixed binary wire format used
// by every exchange in the chat protocol.
//
// All values are encoded with explicit length or count prefixes and no
// delimiters, so reads are unambiguous and safe to perform directly off
// a streaming connection. A generic Serializer[T] interface covers
// primitives (integers, byte strings, Latin-1 text, ids, timestamps)
// and the Nullable/Sequence combinators; EncryptedSerializer[T] layers
// the per-field hybrid envelope on top of any plain serializer.
//
// Strings travel in a single-byte-per-character encoding. Runes above
// 0xFF are not representable and degrade to '?'; callers must ensure
// content fits the encoding before send. This is a known limitation of
// the wire format, kept for compatibility rather than fixed here.
//
// Every failure surfaces as a *codec.Error wrapping one of the subtype
// sentinels (ErrTruncated, ErrBadLength, ErrKeyUnwrap, ErrDecrypt), so
// callers can match the category with errors.As and the subtype with
// errors.Is.
package codec
