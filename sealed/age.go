package sealed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// Age encrypts to a set of x25519 recipients and decrypts with the
// configured identities. Either side may be empty when only one direction
// is needed.
type Age struct {
	recipients []age.Recipient
	identities []age.Identity
}

// GenerateKeypair returns a new age x25519 keypair as (public, private)
// strings in age1... and AGE-SECRET-KEY-1... form.
func GenerateKeypair() (publicKey, privateKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating age keypair: %w", err)
	}
	return identity.Recipient().String(), identity.String(), nil
}

// NewAge parses recipient public keys and private keys.
func NewAge(recipientKeys []string, privateKeys []string) (*Age, error) {
	a := &Age{}
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		a.recipients = append(a.recipients, recipient)
	}
	for _, key := range privateKeys {
		identity, err := age.ParseX25519Identity(key)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		a.identities = append(a.identities, identity)
	}
	return a, nil
}

// Encrypt seals plaintext to every recipient.
func (a *Age) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(a.recipients) == 0 {
		return nil, errors.New("sealed: at least one recipient is required")
	}
	var buf bytes.Buffer
	writer, err := age.Encrypt(&buf, a.recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens ciphertext with any configured identity.
func (a *Age) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(a.identities) == 0 {
		return nil, errors.New("sealed: no private key configured")
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), a.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}
