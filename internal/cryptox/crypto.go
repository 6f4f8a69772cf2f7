// Package cryptox holds the password hashing and symmetric sealing used by
// the client: argon2id for offline credentials and AES-256-GCM for the
// secure preference store.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32
)

// ErrMalformedCiphertext is returned by Open for input shorter than a nonce.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// NewKey returns KeySize random bytes suitable for Seal.
func NewKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// HashPassword derives a 32-byte argon2id hash of password with salt.
func HashPassword(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// VerifyPassword recomputes the hash and compares it in constant time.
func VerifyPassword(password, salt, hash []byte) bool {
	if len(hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(HashPassword(password, salt), hash) == 1
}

// EncodeHash renders a hash for text storage.
func EncodeHash(hash []byte) string {
	return hex.EncodeToString(hash)
}

// DecodeHash parses a value produced by EncodeHash.
func DecodeHash(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// Seal encrypts plaintext with AES-GCM under key and returns nonce||ciphertext.
// The key must be 16, 24 or 32 bytes long.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(key, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrMalformedCiphertext
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
