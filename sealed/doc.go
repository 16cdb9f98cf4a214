// Package sealed provides encryption collaborators for entry payloads and
// whole entries.
//
// Two schemes are offered, both usable wherever an entry encryptor or
// decryptor is expected:
//
//   - [Age] wraps filippo.io/age for x25519 recipients. Any recipient's
//     private key can decrypt; suitable when writers and readers differ.
//   - [AEAD] is XChaCha20-Poly1305 under a shared 32-byte key. The blob
//     format is version || nonce || ciphertext, with the version byte bound
//     as additional authenticated data.
//
// Neither scheme is deterministic: encrypting the same plaintext twice
// yields different ciphertext. Entries therefore cache the ciphertext they
// were signed over instead of re-encrypting on encode.
package sealed
