package entry

import (
	"context"

	"github.com/ipfs/go-cid"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/codec"
)

// Block is an encoded entry and its content address.
type Block struct {
	Hash  string
	Bytes []byte
}

// EncodeOptions selects the encryption layers applied by Encode.
type EncodeOptions struct {
	// EncryptEntry seals the whole encoded entry.
	EncryptEntry Encryptor
	// EncryptPayload marks payload encryption as active: the cached
	// ciphertext replaces the payload. The encryptor itself is not called;
	// the ciphertext was produced, and signed, by Create.
	EncryptPayload Encryptor
}

// DecodeOptions selects the decryption layers applied by Decode.
type DecodeOptions struct {
	DecryptEntry   Decryptor
	DecryptPayload Decryptor
}

// Encode returns the wire block of e. e is not modified.
//
// With entry encryption the canonical entry bytes are sealed and the
// ciphertext is re-encoded as a byte-string block; that outer block's hash
// is the entry hash.
func Encode(ctx context.Context, e *Entry, opts EncodeOptions) (Block, error) {
	if e == nil {
		return Block{}, newError(KindArgument, "OPLOG-ARG-006", "entry is required")
	}

	wire := *e
	if opts.EncryptPayload != nil {
		if e.EncryptedPayload == nil {
			return Block{}, newError(KindArgument, "OPLOG-ARG-005", "payload encryption requested but entry has no encrypted payload")
		}
		wire.Payload = e.EncryptedPayload
	}
	wire.EncryptedPayload = nil
	wire.Hash = ""

	id, data, err := codec.Encode(&wire)
	if err != nil {
		return Block{}, wrapError(KindCodec, "OPLOG-CODEC-001", "encoding entry", err)
	}

	if opts.EncryptEntry != nil {
		ciphertext, err := opts.EncryptEntry.Encrypt(ctx, data)
		if err != nil {
			return Block{}, wrapError(KindProvider, "OPLOG-PRV-004", "encrypting entry", err)
		}
		id, data, err = codec.Encode(ciphertext)
		if err != nil {
			return Block{}, wrapError(KindCodec, "OPLOG-CODEC-001", "encoding sealed entry", err)
		}
	}

	return Block{Hash: cidutil.Format(id), Bytes: data}, nil
}

// Decode parses a wire block into a new entry with Hash set.
//
// Any failure while opening an entry-level block, including bytes that are
// sealed when no DecryptEntry is given, yields the fixed "Could not decrypt
// entry" error. Payload decryption failures yield "Could not decrypt
// payload". No partially decoded entry is ever returned.
func Decode(ctx context.Context, data []byte, opts DecodeOptions) (*Entry, error) {
	plain := data
	var wrapper cid.Cid

	if opts.DecryptEntry != nil {
		var sealed []byte
		id, err := codec.Decode(data, &sealed)
		if err != nil {
			return nil, errDecryptEntry()
		}
		opened, err := opts.DecryptEntry.Decrypt(ctx, sealed)
		if err != nil {
			return nil, errDecryptEntry()
		}
		wrapper = id
		plain = opened
	} else if codec.IsBytes(data) {
		return nil, errDecryptEntry()
	}

	var e Entry
	id, err := codec.Decode(plain, &e)
	if err != nil {
		return nil, wrapError(KindCodec, "OPLOG-CODEC-002", "decoding entry", err)
	}

	if opts.DecryptPayload != nil {
		ciphertext, ok := e.Payload.([]byte)
		if !ok {
			return nil, errDecryptPayload()
		}
		block, err := opts.DecryptPayload.Decrypt(ctx, ciphertext)
		if err != nil {
			return nil, errDecryptPayload()
		}
		var payload any
		if err := codec.Unmarshal(block, &payload); err != nil {
			return nil, errDecryptPayload()
		}
		e.EncryptedPayload = ciphertext
		e.Payload = payload
	}

	if wrapper.Defined() {
		e.Hash = cidutil.Format(wrapper)
	} else {
		e.Hash = cidutil.Format(id)
	}
	return &e, nil
}

// HashOf returns the content address of wire bytes as produced by Encode.
func HashOf(data []byte) string {
	return cidutil.CIDv1DagCBORSHA256(data)
}
