package aead

import (
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

type chachaEngine struct {
	aead cipher.AEAD
}

func newChaCha20Poly1305Engine(key []byte) (Engine, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("aead: invalid ChaCha20-Poly1305 key size")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &chachaEngine{aead: aead}, nil
}

func (e *chachaEngine) Suite() Suite   { return ChaCha20Poly1305 }
func (e *chachaEngine) KeySize() int   { return chacha20poly1305.KeySize }
func (e *chachaEngine) NonceSize() int { return e.aead.NonceSize() }
func (e *chachaEngine) TagSize() int   { return e.aead.Overhead() }

func (e *chachaEngine) Seal(dst, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, errors.New("aead: invalid ChaCha20-Poly1305 nonce size")
	}
	return e.aead.Seal(dst, nonce, plaintext, aad), nil
}

func (e *chachaEngine) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, errors.New("aead: invalid ChaCha20-Poly1305 nonce size")
	}
	return e.aead.Open(dst, nonce, ciphertext, aad)
}
