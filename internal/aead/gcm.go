package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// AES-GCM is already the canonical, constant-time Go implementation in
// crypto/cipher; no ecosystem library improves on it, so the GCM engine
// is a thin adapter rather than a hand-rolled construction.
type gcmEngine struct {
	suite Suite
	aead  cipher.AEAD
}

func newGCMEngine(suite Suite, key []byte, keySize int) (Engine, error) {
	if len(key) != keySize {
		return nil, errors.New("aead: invalid GCM key size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmEngine{suite: suite, aead: gcm}, nil
}

func (e *gcmEngine) Suite() Suite   { return e.suite }
func (e *gcmEngine) KeySize() int   { return e.suite.KeySize() }
func (e *gcmEngine) NonceSize() int { return e.aead.NonceSize() }
func (e *gcmEngine) TagSize() int   { return e.aead.Overhead() }

func (e *gcmEngine) Seal(dst, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, errors.New("aead: invalid GCM nonce size")
	}
	return e.aead.Seal(dst, nonce, plaintext, aad), nil
}

func (e *gcmEngine) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, errors.New("aead: invalid GCM nonce size")
	}
	// crypto/cipher's GCM never writes to dst before the tag check passes,
	// so there is nothing to zero on failure here.
	return e.aead.Open(dst, nonce, ciphertext, aad)
}
