// Package secrets provides the symmetric cipher protecting connector and
// integration credentials at rest. A single process-wide key is derived from
// the configured master key at startup and never rotated in-process.
package secrets

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
)

// Sentinel is returned by Decrypt for any token that fails format or
// integrity verification. A corrupted or foreign-key secret degrades to this
// value instead of failing the caller; the connector then simply
// authenticates incorrectly upstream.
const Sentinel = "***invalid***"

// tokenPrefix versions the ciphertext format.
const tokenPrefix = "lw1:"

// Cipher encrypts and decrypts opaque secret values with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the process-wide key from masterKey (SHA-256) and builds
// the AEAD. The master key must be non-empty.
func NewCipher(masterKey string) (*Cipher, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, errors.New("master key is required")
	}
	sum := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext into a versioned, URL-safe ciphertext token.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Any malformed, tampered, or
// foreign-key token yields Sentinel, never an error.
func (c *Cipher) Decrypt(token string) string {
	encoded, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return Sentinel
	}
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Sentinel
	}
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return Sentinel
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return Sentinel
	}
	return string(plaintext)
}

// EncryptMap seals every value of a secrets mapping key-by-key. Empty values
// (a JSON null secret decodes to one) are dropped, not encrypted. A nil or
// empty input yields an empty map.
func (c *Cipher) EncryptMap(values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for key, value := range values {
		if value == "" {
			continue
		}
		token, err := c.Encrypt(value)
		if err != nil {
			return nil, fmt.Errorf("encrypt secret %q: %w", key, err)
		}
		out[key] = token
	}
	return out, nil
}

// DecryptMap opens every value of a secrets mapping key-by-key. Undecryptable
// values degrade to Sentinel individually, so one corrupted secret does not
// take the rest down. A nil or empty input yields an empty map.
func (c *Cipher) DecryptMap(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, token := range values {
		out[key] = c.Decrypt(token)
	}
	return out
}
