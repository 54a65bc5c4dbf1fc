// Package crypto seals third-party credentials before they reach the
// database, using AES-256-GCM with a key derived by HKDF.
//
// Sealed values look like "enc:v1:<base64(nonce+ciphertext)>". Values
// without the prefix are treated as legacy plaintext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "enc:v1:"

var ErrMissingKey = errors.New("crypto: sealed value but no key configured")

// TokenCipher is safe for concurrent use. A nil *TokenCipher stores values
// in plaintext.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives a key for purpose from secret. Different purposes
// yield unrelated keys.
func NewTokenCipher(secret []byte, purpose string) (*TokenCipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("crypto: empty secret")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte("repost-token-sealing"), []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (c *TokenCipher) Seal(plaintext string) (string, error) {
	if c == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Unprefixed values are returned unchanged.
func (c *TokenCipher) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	if c == nil {
		return "", ErrMissingKey
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("crypto: invalid base64: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("crypto: sealed value too short")
	}
	plaintext, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", err)
	}
	return string(plaintext), nil
}

func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, sealedPrefix)
}
