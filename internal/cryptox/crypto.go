// Package cryptox seals small secrets (such as login-exchange session keys)
// before they are written to the store.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "wxcounter/session-key/v1"

var ErrMalformedSealed = errors.New("malformed sealed value")

// DeriveKey expands secret into a 32-byte key bound to info.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sealer encrypts with XChaCha20-Poly1305. The output is
// base64(nonce || ciphertext) so it fits a text column.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from secret. An empty secret is rejected.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty sealing secret")
	}
	key, err := DeriveKey(secret, sealInfo)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext; additional binds the ciphertext to a context
// (for example the external subject id) and must be passed again to Open.
func (s *Sealer) Seal(plaintext, additional []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := aead.Seal(nonce, nonce, plaintext, additional)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string, additional []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrMalformedSealed
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformedSealed
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, additional)
}
