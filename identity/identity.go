// Package identity provides the signing identities that author log entries
// and the Provider that signs and verifies on their behalf.
//
// An Identity is identified by the content hash of its public record
// {id, type, publicKey}; that hash is what entries store in their identity
// field, while the public key itself is stored separately so a reader can
// verify without resolving the record.
package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/oplog/cidutil"
	"xdao.co/oplog/codec"
	"xdao.co/oplog/keys"
)

// Identity is an author of log entries.
type Identity struct {
	// ID is the human-facing identifier (a key store name, or the public
	// key when none is given).
	ID string
	// Type is the key algorithm: keys.AlgEd25519 or keys.AlgDilithium3.
	Type string
	// PublicKey is the "<alg>:<base64>" public key string.
	PublicKey string
	// Hash is the content hash of the identity record.
	Hash string

	ed25519Key    ed25519.PrivateKey
	dilithium3Key *mode3.PrivateKey
}

// record is the persisted, hashed form of an identity.
type record struct {
	ID        string `cbor:"id"`
	Type      string `cbor:"type"`
	PublicKey string `cbor:"publicKey"`
}

// FromSeed builds an ed25519 identity from a 32-byte seed.
func FromSeed(id string, seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub, err := keys.PublicKeyFromEd25519(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	ident, err := newIdentity(id, keys.AlgEd25519, pub)
	if err != nil {
		return nil, err
	}
	ident.ed25519Key = priv
	return ident, nil
}

// NewDilithium3 generates a post-quantum dilithium3 identity.
func NewDilithium3(id string, rand io.Reader) (*Identity, error) {
	pk, sk, err := keys.GenerateDilithium3Keypair(rand)
	if err != nil {
		return nil, fmt.Errorf("identity: generating dilithium3 key: %w", err)
	}
	pub, err := keys.PublicKeyFromDilithium3(pk)
	if err != nil {
		return nil, err
	}
	ident, err := newIdentity(id, keys.AlgDilithium3, pub)
	if err != nil {
		return nil, err
	}
	ident.dilithium3Key = sk
	return ident, nil
}

// FromKeyStore loads the named identity (or one of its roles) from ks.
// The identity ID is "name" or "name/role".
func FromKeyStore(ks *keys.KeyStore, name, role string) (*Identity, error) {
	if ks == nil {
		return nil, errors.New("identity: nil key store")
	}
	seed, err := ks.Seed(name, role)
	if err != nil {
		return nil, fmt.Errorf("identity: loading %q: %w", name, err)
	}
	id := name
	if role != "" {
		id = name + "/" + role
	}
	return FromSeed(id, seed)
}

// Public returns a verification-only identity for a known public key.
func Public(id, publicKey string) (*Identity, error) {
	alg, _, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	return newIdentity(id, alg, publicKey)
}

func newIdentity(id, alg, publicKey string) (*Identity, error) {
	if id == "" {
		id = publicKey
	}
	ident := &Identity{ID: id, Type: alg, PublicKey: publicKey}
	hash, err := ident.computeHash()
	if err != nil {
		return nil, err
	}
	ident.Hash = hash
	return ident, nil
}

// Record returns the canonical bytes of the identity record.
func (i *Identity) Record() ([]byte, error) {
	return codec.Marshal(record{ID: i.ID, Type: i.Type, PublicKey: i.PublicKey})
}

func (i *Identity) computeHash() (string, error) {
	id, _, err := codec.Encode(record{ID: i.ID, Type: i.Type, PublicKey: i.PublicKey})
	if err != nil {
		return "", fmt.Errorf("identity: hashing record: %w", err)
	}
	return cidutil.Format(id), nil
}

// CanSign reports whether the identity holds a private key.
func (i *Identity) CanSign() bool {
	return i != nil && (i.ed25519Key != nil || i.dilithium3Key != nil)
}
