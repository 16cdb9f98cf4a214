package entry

import (
	"context"

	"xdao.co/oplog/clock"
	"xdao.co/oplog/codec"
	"xdao.co/oplog/identity"
)

// CreateOptions are the optional inputs of Create.
type CreateOptions struct {
	// EncryptPayload, when set, encrypts the canonical payload block; the
	// ciphertext is what gets signed and persisted.
	EncryptPayload Encryptor
	// Clock defaults to clock.New(identity.PublicKey).
	Clock *clock.Clock
	// Next and Refs default to empty.
	Next []string
	Refs []string
}

// Create builds and signs a new entry for log logID. The returned entry
// has no Hash; Encode computes it.
//
// Inputs are validated before signer or encryptor is called. Signer and
// encryptor failures are returned as KindProvider errors wrapping the
// original error.
func Create(ctx context.Context, signer Signer, id *identity.Identity, logID string, payload any, opts CreateOptions) (*Entry, error) {
	if signer == nil {
		return nil, newError(KindArgument, "OPLOG-ARG-001", "signer is required")
	}
	if id == nil {
		return nil, newError(KindArgument, "OPLOG-ARG-002", "identity is required")
	}
	if logID == "" {
		return nil, newError(KindArgument, "OPLOG-ARG-003", "entry requires an id")
	}
	if !hasValue(payload) {
		return nil, newError(KindArgument, "OPLOG-ARG-004", "entry requires a payload")
	}

	c := clock.New(id.PublicKey)
	if opts.Clock != nil {
		c = *opts.Clock
	}

	e := &Entry{
		ID:      logID,
		Payload: payload,
		Next:    append([]string{}, opts.Next...),
		Refs:    append([]string{}, opts.Refs...),
		Clock:   c,
		V:       Version,
	}

	if opts.EncryptPayload != nil {
		block, err := codec.Marshal(payload)
		if err != nil {
			return nil, wrapError(KindCodec, "OPLOG-CODEC-001", "encoding payload", err)
		}
		ciphertext, err := opts.EncryptPayload.Encrypt(ctx, block)
		if err != nil {
			return nil, wrapError(KindProvider, "OPLOG-PRV-003", "encrypting payload", err)
		}
		e.EncryptedPayload = ciphertext
	}

	signing, err := codec.Marshal(e.snapshot())
	if err != nil {
		return nil, wrapError(KindCodec, "OPLOG-CODEC-001", "encoding signing snapshot", err)
	}
	sig, err := signer.Sign(ctx, id, signing)
	if err != nil {
		return nil, wrapError(KindProvider, "OPLOG-PRV-001", "signing entry", err)
	}

	e.Key = id.PublicKey
	e.Identity = id.Hash
	e.Sig = sig
	return e, nil
}
