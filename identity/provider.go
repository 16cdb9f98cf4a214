package identity

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/oplog/keys"
)

// DefaultDilithiumHash is the digest signed by dilithium3 identities.
const DefaultDilithiumHash = "sha3-256"

var (
	// ErrCannotSign is returned when signing with a verification-only identity.
	ErrCannotSign = errors.New("identity: identity has no private key")
	// ErrNilIdentity is returned when signing without an identity.
	ErrNilIdentity = errors.New("identity: nil identity")
)

// Provider signs with identities and verifies signatures against public
// key strings. The zero value is ready to use.
type Provider struct {
	// DilithiumHash overrides DefaultDilithiumHash.
	DilithiumHash string
}

func (p Provider) dilithiumHash() string {
	if p.DilithiumHash == "" {
		return DefaultDilithiumHash
	}
	return p.DilithiumHash
}

// Sign returns the base64 signature of data by id.
func (p Provider) Sign(ctx context.Context, id *Identity, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == nil {
		return "", ErrNilIdentity
	}
	switch {
	case id.ed25519Key != nil:
		return keys.SignEd25519SHA256(data, id.ed25519Key), nil
	case id.dilithium3Key != nil:
		return keys.SignDilithium3(data, p.dilithiumHash(), id.dilithium3Key)
	default:
		return "", ErrCannotSign
	}
}

// Verify reports whether sig is publicKey's signature of data. A signature
// that does not match is (false, nil); an unusable public key is an error.
func (p Provider) Verify(ctx context.Context, sig, publicKey string, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	alg, raw, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return false, fmt.Errorf("identity: %w", err)
	}
	switch alg {
	case keys.AlgEd25519:
		return keys.VerifyEd25519SHA256(data, ed25519.PublicKey(raw), sig), nil
	case keys.AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return false, fmt.Errorf("identity: invalid dilithium3 public key: %w", err)
		}
		return keys.VerifyDilithium3(data, p.dilithiumHash(), &pk, sig)
	default:
		return false, fmt.Errorf("identity: unsupported key algorithm %q", alg)
	}
}
