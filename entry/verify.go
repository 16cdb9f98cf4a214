package entry

import (
	"context"

	"xdao.co/oplog/codec"
)

// Verify checks e's signature with verifier.
//
// The signed snapshot is rebuilt with the cached payload ciphertext when
// the entry has one, so a decrypted entry verifies against the bytes that
// were actually signed. The cache is trusted as is; it is never re-derived
// from the plaintext.
//
// A non-matching signature is (false, nil). Missing inputs are KindStructure
// errors; verifier failures are KindProvider errors.
func Verify(ctx context.Context, verifier Verifier, e *Entry) (bool, error) {
	if verifier == nil {
		return false, newError(KindStructure, "OPLOG-STR-001", "identity provider is required")
	}
	if !IsEntry(e) {
		return false, newError(KindStructure, "OPLOG-STR-002", "invalid entry")
	}
	if e.Key == "" {
		return false, newError(KindStructure, "OPLOG-STR-003", "entry doesn't have a key")
	}
	if e.Sig == "" {
		return false, newError(KindStructure, "OPLOG-STR-004", "entry doesn't have a signature")
	}

	signing, err := codec.Marshal(e.snapshot())
	if err != nil {
		return false, wrapError(KindCodec, "OPLOG-CODEC-001", "encoding signing snapshot", err)
	}
	ok, err := verifier.Verify(ctx, e.Sig, e.Key, signing)
	if err != nil {
		return false, wrapError(KindProvider, "OPLOG-PRV-002", "verifying signature", err)
	}
	return ok, nil
}
