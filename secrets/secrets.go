package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrIntegrity is returned when a sealed secret fails authentication, either
// because the ciphertext was tampered with or a different key was used.
var ErrIntegrity = errors.New("secrets: integrity check failed")

const tagSize = 16 // AES-GCM authentication tag, bytes

// Sealed is an encrypted secret as stored at rest. Ciphertext, nonce and tag
// are kept as separate base64 fields to match the persisted schema.
type Sealed struct {
	Ciphertext string
	Nonce      string
	Tag        string
}

// Box encrypts and decrypts secrets with AES-256-GCM under a fixed key.
type Box struct {
	aead cipher.AEAD
}

// NewBox creates a Box from a raw 32-byte key. Any other key length is a
// configuration error and must abort startup.
func NewBox(key []byte) (*Box, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random 12-byte nonce.
func (b *Box) Seal(plaintext string) (Sealed, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, err
	}

	out := b.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := out[:len(out)-tagSize], out[len(out)-tagSize:]

	return Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Tag:        base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// Open decrypts a sealed secret. Any malformed field, wrong nonce length or
// tag mismatch is reported as ErrIntegrity.
func (b *Box) Open(s Sealed) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return "", ErrIntegrity
	}
	nonce, err := base64.StdEncoding.DecodeString(s.Nonce)
	if err != nil {
		return "", ErrIntegrity
	}
	tag, err := base64.StdEncoding.DecodeString(s.Tag)
	if err != nil {
		return "", ErrIntegrity
	}
	if len(nonce) != b.aead.NonceSize() || len(tag) != tagSize {
		return "", ErrIntegrity
	}

	plain, err := b.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plain), nil
}
