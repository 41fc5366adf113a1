package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of a symmetric key in bytes.
	KeySize = 32

	// nonceSize is the length of the secretbox nonce prepended to every ciphertext.
	nonceSize = 24

	// pbkdf2Iterations is the work factor for passphrase-derived keys.
	pbkdf2Iterations = 20000
)

// Cipher performs authenticated symmetric encryption with a fixed key.
// The zero value is unusable; construct one with New, NewFromBase64, or
// NewFromPassphrase.
type Cipher struct {
	key [KeySize]byte
}

// New returns a Cipher using the given key.
func New(key [KeySize]byte) *Cipher {
	return &Cipher{key: key}
}

// NewFromBase64 returns a Cipher from a standard-base64 encoded 32-byte key.
//
// Returns ErrInvalidKeyEncoding if the string is not valid base64.
// Returns ErrInvalidKeyLength if the decoded key is not exactly 32 bytes.
func NewFromBase64(encoded string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidKeyEncoding, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d bytes", kerrors.ErrInvalidKeyLength, KeySize, len(raw))
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &Cipher{key: key}, nil
}

// NewFromPassphrase derives a Cipher key from a passphrase and salt using
// PBKDF2-SHA256. The same passphrase and salt always yield the same key.
func NewFromPassphrase(passphrase string, salt []byte) *Cipher {
	raw := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, KeySize, sha256.New)

	var key [KeySize]byte
	copy(key[:], raw)
	return &Cipher{key: key}
}

// Encrypt seals plaintext with a fresh random nonce. The nonce is prepended
// to the returned ciphertext, so every call produces a different output for
// the same input.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &c.key), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
//
// Returns ErrIntegrity if the data is truncated, tampered with, or was
// sealed with a different key.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", kerrors.ErrIntegrity)
	}

	// Extract the nonce from the beginning of the ciphertext.
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &c.key)
	if !ok {
		return nil, fmt.Errorf("%w: secretbox authentication failed", kerrors.ErrIntegrity)
	}

	return plaintext, nil
}

// GenerateKey creates a new random symmetric key.
func GenerateKey() ([KeySize]byte, error) {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("failed to generate key: %w", err)
	}

	return key, nil
}

// EncodeKey returns the standard-base64 encoding of a key.
func EncodeKey(key [KeySize]byte) string {
	return base64.StdEncoding.EncodeToString(key[:])
}

// WriteKeyFile writes a base64-encoded key to path with owner-only permissions.
func WriteKeyFile(path string, key [KeySize]byte) error {
	if err := os.WriteFile(path, []byte(EncodeKey(key)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}

// ReadKeyFile loads a Cipher from a base64-encoded key file.
//
// Returns ErrKeyNotFound if the file does not exist.
// Returns ErrInvalidKeyEncoding or ErrInvalidKeyLength for malformed contents.
func ReadKeyFile(path string) (*Cipher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrKeyNotFound, path)
		}
		return nil, fmt.Errorf("failed to read key file at %s: %w", path, err)
	}

	return NewFromBase64(string(data))
}
