package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"candidate-screening/internal/config"
)

var errShortCiphertext = errors.New("ciphertext too short")

// EncryptionService seals artifact content with AES-GCM. Each message gets a fresh random nonce,
// stored as a prefix: nonce || ciphertext.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService accepts a 16, 24 or 32 byte key (AES-128/192/256).
func NewEncryptionService(key string) (*EncryptionService, error) {
	k := []byte(key)
	if n := len(k); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// FromConfig returns nil when no key is configured.
func FromConfig(cfg config.SecurityConfig) (*EncryptionService, error) {
	k, err := cfg.Key()
	if err != nil || k == nil {
		return nil, err
	}
	return NewEncryptionService(string(k))
}

// Seal encrypts plaintext. aad binds the ciphertext to its storage key so rows cannot be swapped.
func (e *EncryptionService) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize(), e.gcm.NonceSize()+len(plaintext)+e.gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}
	return e.gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func (e *EncryptionService) Open(sealed, aad []byte) ([]byte, error) {
	ns := e.gcm.NonceSize()
	if len(sealed) < ns+e.gcm.Overhead() {
		return nil, errShortCiphertext
	}
	pt, err := e.gcm.Open(nil, sealed[:ns], sealed[ns:], aad)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return pt, nil
}
