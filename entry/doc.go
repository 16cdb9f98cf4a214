// Package entry implements the entry primitive of an append-only operation
// log: construction, signing, verification and the wire encoding.
//
// An Entry is signed once by Create over the snapshot
// {id, payload, next, refs, clock, v}. When the payload is encrypted the
// snapshot holds the ciphertext, which the entry keeps in EncryptedPayload
// while Payload stays the caller-visible plaintext. Verify always rebuilds
// the snapshot from the cached ciphertext when present, so an entry that was
// decrypted after decoding still verifies.
//
// Encode produces the content-addressed wire block; Decode reverses it and
// attaches the hash. Both take optional encryption layers: payload-level
// (ciphertext substituted for the payload) and entry-level (the whole block
// sealed and re-wrapped as an opaque byte-string block whose hash becomes the
// entry hash).
//
// Errors are *Error values; branch on Kind via IsKind. A signature that does
// not match is reported by Verify as false, not as an error.
package entry
