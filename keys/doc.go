// Package keys provides the key material helpers behind oplog identities.
//
// Stable:
//   - Public-key string format ("<alg>:<base64>") and its parser.
//   - Signing and verification primitives for ed25519 (over sha256) and
//     dilithium3 (over a selectable digest).
//   - Deterministic role-seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local-first
//     convenience for the CLI and may change in MINOR releases.
package keys
