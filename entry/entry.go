package entry

import (
	"context"
	"reflect"

	"xdao.co/oplog/clock"
	"xdao.co/oplog/identity"
)

// Version is the entry format version written by Create.
const Version = 2

// Entry is one signed unit of an operation log.
//
// Fields tagged for CBOR make up the wire object. Hash and
// EncryptedPayload are derived and never persisted as fields.
type Entry struct {
	// ID groups entries into one log.
	ID string `cbor:"id"`
	// Payload is the application value; the decrypted view when payload
	// encryption is in use.
	Payload any `cbor:"payload"`
	// Next holds the hashes of the immediate causal predecessors.
	Next []string `cbor:"next"`
	// Refs holds hashes of further ancestors for traversal shortcuts.
	Refs []string `cbor:"refs"`
	// Clock orders the entry among concurrent writers.
	Clock clock.Clock `cbor:"clock"`
	// V is the format version.
	V int `cbor:"v"`
	// Key is the signer's public key ("<alg>:<base64>").
	Key string `cbor:"key"`
	// Identity is the hash of the signer's identity record.
	Identity string `cbor:"identity"`
	// Sig is the signature over the signing snapshot.
	Sig string `cbor:"sig"`

	// Hash is the content address of the encoded entry. Set only by
	// Encode's caller or by Decode.
	Hash string `cbor:"-"`
	// EncryptedPayload caches the payload ciphertext that was signed.
	EncryptedPayload []byte `cbor:"-"`
}

// snapshot is the signed subset of an entry, in wire field names.
type snapshot struct {
	ID      string      `cbor:"id"`
	Payload any         `cbor:"payload"`
	Next    []string    `cbor:"next"`
	Refs    []string    `cbor:"refs"`
	Clock   clock.Clock `cbor:"clock"`
	V       int         `cbor:"v"`
}

// Signer produces a signature over data on behalf of an identity.
type Signer interface {
	Sign(ctx context.Context, id *identity.Identity, data []byte) (string, error)
}

// Verifier checks a signature against a public key.
type Verifier interface {
	Verify(ctx context.Context, sig, publicKey string, data []byte) (bool, error)
}

// Encryptor turns a canonical block into ciphertext.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
}

// Decryptor is the inverse of an Encryptor.
type Decryptor interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// EncryptFunc adapts a function to Encryptor.
type EncryptFunc func(ctx context.Context, plaintext []byte) ([]byte, error)

func (f EncryptFunc) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	return f(ctx, plaintext)
}

// DecryptFunc adapts a function to Decryptor.
type DecryptFunc func(ctx context.Context, ciphertext []byte) ([]byte, error)

func (f DecryptFunc) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	return f(ctx, ciphertext)
}

// IsEntry reports whether e carries every structural field: id, next,
// payload, v, clock and refs. Signature fields are not considered.
func IsEntry(e *Entry) bool {
	return e != nil &&
		e.ID != "" &&
		e.Next != nil &&
		hasValue(e.Payload) &&
		e.V != 0 &&
		e.Clock.Defined() &&
		e.Refs != nil
}

// hasValue reports whether v is non-nil, looking through pointers and
// interfaces: a typed nil pointer encodes as CBOR null.
func hasValue(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.IsValid()
}

// IsEqual reports whether a and b have the same hash. Entries without a
// hash are never equal, not even to themselves.
func IsEqual(a, b *Entry) bool {
	return a != nil && b != nil && a.Hash != "" && b.Hash != "" && a.Hash == b.Hash
}

// Clone returns a copy of e that shares no slices with it. Payload values
// are shared.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Next != nil {
		out.Next = append([]string{}, e.Next...)
	}
	if e.Refs != nil {
		out.Refs = append([]string{}, e.Refs...)
	}
	if e.EncryptedPayload != nil {
		out.EncryptedPayload = append([]byte{}, e.EncryptedPayload...)
	}
	return &out
}

// signedPayload is the payload value covered by the signature: the cached
// ciphertext when present, else the visible payload.
func (e *Entry) signedPayload() any {
	if e.EncryptedPayload != nil {
		return e.EncryptedPayload
	}
	return e.Payload
}

func (e *Entry) snapshot() snapshot {
	return snapshot{
		ID:      e.ID,
		Payload: e.signedPayload(),
		Next:    e.Next,
		Refs:    e.Refs,
		Clock:   e.Clock,
		V:       e.V,
	}
}
