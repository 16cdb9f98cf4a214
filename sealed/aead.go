package sealed

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of an AEAD key.
const KeySize = chacha20poly1305.KeySize

// BlobVersion is the first byte of every AEAD blob. It is bound as
// additional authenticated data.
const BlobVersion byte = 0x01

// BlobOverhead is 1 (version) + 24 (nonce) + 16 (tag).
const BlobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// ErrOpen is returned for any blob that does not authenticate.
var ErrOpen = errors.New("sealed: message authentication failed")

// AEAD is XChaCha20-Poly1305 encryption under a shared key.
type AEAD struct {
	key []byte
}

// GenerateKey returns a random AEAD key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// NewAEAD copies key, which must be KeySize bytes.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("sealed: key must be %d bytes, got %d", KeySize, len(key))
	}
	return &AEAD{key: append([]byte(nil), key...)}, nil
}

// Encrypt returns version || nonce || seal(plaintext).
func (a *AEAD) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cipher, err := chacha20poly1305.NewX(a.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	out := make([]byte, 1+chacha20poly1305.NonceSizeX, len(plaintext)+BlobOverhead)
	out[0] = BlobVersion
	nonce := out[1 : 1+chacha20poly1305.NonceSizeX]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return cipher.Seal(out, nonce, plaintext, out[:1]), nil
}

// Decrypt authenticates and opens a blob produced by Encrypt.
func (a *AEAD) Decrypt(ctx context.Context, blob []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(blob) < BlobOverhead || blob[0] != BlobVersion {
		return nil, ErrOpen
	}
	cipher, err := chacha20poly1305.NewX(a.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := cipher.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}
