package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedPrefix marks a configuration value that must be decrypted before use.
const EncryptedPrefix = "enc:"

var (
	ErrInvalidKey        = errors.New("security: credentials key must be 32 bytes, base64 encoded")
	ErrMalformedCipher   = errors.New("security: malformed ciphertext")
	ErrDecryptionFailure = errors.New("security: decryption failed")
)

// Cipher seals short secrets with XChaCha20-Poly1305.
type Cipher struct {
	key []byte
}

func NewCipher(base64Key string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(base64Key))
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Cipher{key: key}, nil
}

// NewCipherFromConfig reads EXCHANGE_CREDENTIALS_KEY.
func NewCipherFromConfig() (*Cipher, error) {
	return NewCipher(GetConfig().CredentialsKey)
}

// EncryptString returns "enc:" + base64(nonce || ciphertext).
func (c *Cipher) EncryptString(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. The prefix is optional.
func (c *Cipher) DecryptString(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, EncryptedPrefix))
	if err != nil {
		return "", ErrMalformedCipher
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformedCipher
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailure
	}
	return string(plain), nil
}

// Resolve returns value unchanged unless it carries the encrypted prefix.
func (c *Cipher) Resolve(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}
	return c.DecryptString(value)
}
