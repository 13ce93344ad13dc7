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

	"golang.org/x/crypto/hkdf"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

const keyInfo = "document-enricher credential tokens v1"

// Codec encrypts stored tokens with AES-256-GCM. Output is
// base64(nonce || ciphertext).
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the AES key from secret with HKDF-SHA256.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, domain.WrapError(domain.ErrConfigurationMissing, "new secret codec", errors.New("secret key is empty"))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "encrypt", errors.New("plaintext is empty"))
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "decrypt", errors.New("ciphertext is empty"))
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "decrypt", fmt.Errorf("decode base64: %w", err))
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", domain.WrapError(domain.ErrInvalidInput, "decrypt", errors.New("ciphertext too short"))
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "decrypt", fmt.Errorf("open: %w", err))
	}
	return string(plain), nil
}
