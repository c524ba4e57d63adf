// Package aead abstracts the five cipher suites TagoTiP/S envelopes may
// carry so the envelope framer can seal and open without caring which one
// is in play. Each suite is a stateless, allocation-light codec over a
// caller-supplied key; none of them retain key material beyond a single
// call.
package aead

import "fmt"

// ============================================================================
// CIPHER SUITE REGISTRY
// Tenant-configurable (per spec §6, cipher_suite) AEAD algorithm selection.
// ============================================================================

// Suite identifies one of the five wire cipher suites, matching the 3-bit
// "cipher" field of the envelope header flags byte (spec §4.5).
type Suite int

const (
	AES128CCM Suite = iota
	AES128GCM
	AES256CCM
	AES256GCM
	ChaCha20Poly1305
)

func (s Suite) String() string {
	switch s {
	case AES128CCM:
		return "aes-128-ccm"
	case AES128GCM:
		return "aes-128-gcm"
	case AES256CCM:
		return "aes-256-ccm"
	case AES256GCM:
		return "aes-256-gcm"
	case ChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the five enumerated wire suites.
func (s Suite) Valid() bool {
	return s >= AES128CCM && s <= ChaCha20Poly1305
}

// Engine is the sealed/opened-data codec every cipher suite implements.
// Seal and Open both append to dst and return the extended slice, mirroring
// crypto/cipher.AEAD so callers already familiar with the stdlib idiom need
// nothing new. On an Open authentication failure, the plaintext region of
// dst written so far is zeroed before the error is returned.
type Engine interface {
	Suite() Suite
	KeySize() int
	NonceSize() int
	TagSize() int
	Seal(dst, nonce, plaintext, aad []byte) ([]byte, error)
	Open(dst, nonce, ciphertext, aad []byte) ([]byte, error)
}

// NewEngine constructs the Engine for suite using key, which must already
// be the suite's exact KeySize. Unknown suites return an error.
func NewEngine(suite Suite, key []byte) (Engine, error) {
	switch suite {
	case AES128CCM:
		return newCCMEngine(suite, key, 16)
	case AES256CCM:
		return newCCMEngine(suite, key, 32)
	case AES128GCM:
		return newGCMEngine(suite, key, 16)
	case AES256GCM:
		return newGCMEngine(suite, key, 32)
	case ChaCha20Poly1305:
		return newChaCha20Poly1305Engine(key)
	default:
		return nil, fmt.Errorf("aead: unsupported cipher suite: %d", int(suite))
	}
}

// KeySize returns the key length in bytes a suite expects, without
// constructing an Engine. Useful for callers deriving a key before they
// have ciphertext in hand.
func (s Suite) KeySize() int {
	switch s {
	case AES128CCM, AES128GCM:
		return 16
	case AES256CCM, AES256GCM, ChaCha20Poly1305:
		return 32
	default:
		return 0
	}
}

// NonceSize returns the nonce length a suite expects: 13 bytes for the CCM
// family (spec §4.5), 12 for GCM and ChaCha20-Poly1305.
func (s Suite) NonceSize() int {
	switch s {
	case AES128CCM, AES256CCM:
		return 13
	case AES128GCM, AES256GCM, ChaCha20Poly1305:
		return 12
	default:
		return 0
	}
}

// TagSize returns the authentication tag length: 8 bytes for CCM per spec,
// 16 for GCM and ChaCha20-Poly1305.
func (s Suite) TagSize() int {
	switch s {
	case AES128CCM, AES256CCM:
		return 8
	case AES128GCM, AES256GCM, ChaCha20Poly1305:
		return 16
	default:
		return 0
	}
}
