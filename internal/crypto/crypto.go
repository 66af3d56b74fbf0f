package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
)

const keyInfo = "starred-sync credential encryption"

// Cipher encrypts credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NoopCipher passes values through unchanged (tests only).
type NoopCipher struct{}

func (NoopCipher) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (NoopCipher) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// AESCipher is AES-256-GCM keyed by an HKDF-SHA256 derivation of a configured secret.
// Output is hex(iv):hex(ciphertext), with a fresh random iv per call.
type AESCipher struct {
	gcm cipher.AEAD
}

func NewAESCipher(secret string) (*AESCipher, error) {
	if secret == "" {
		return nil, apperrors.New(apperrors.ErrEncryptionFailure, "encryption secret is empty", nil)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, apperrors.New(apperrors.ErrEncryptionFailure, "failed to derive key", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrEncryptionFailure, "failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrEncryptionFailure, "failed to create GCM", err)
	}

	return &AESCipher{gcm: gcm}, nil
}

func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", apperrors.New(apperrors.ErrEncryptionFailure, "failed to generate iv", err)
	}

	sealed := c.gcm.Seal(nil, iv, []byte(plaintext), nil)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(sealed), nil
}

func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 2 {
		return "", apperrors.New(apperrors.ErrMalformedCiphertext,
			fmt.Sprintf("expected 2 colon-separated parts, got %d", len(parts)), nil)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", apperrors.New(apperrors.ErrMalformedCiphertext, "iv is not valid hex", err)
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", apperrors.New(apperrors.ErrMalformedCiphertext, "ciphertext is not valid hex", err)
	}
	if len(iv) != c.gcm.NonceSize() {
		return "", apperrors.New(apperrors.ErrMalformedCiphertext,
			fmt.Sprintf("iv must be %d bytes, got %d", c.gcm.NonceSize(), len(iv)), nil)
	}

	plain, err := c.gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", apperrors.New(apperrors.ErrEncryptionFailure, "failed to decrypt", err)
	}
	return string(plain), nil
}
