// Package identity derives the compact, non-secret hashes TagoTiP/S uses
// to route an envelope to the right device record, plus the HMAC key
// derivation that turns a long-lived auth token into a per-session AEAD
// key. None of these functions allocate beyond their fixed-size return
// values, and none retain the input after returning.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
)

// HashSize is the width of auth_hash and device_hash: the first 8 bytes
// of a SHA-256 digest.
const HashSize = 8

// stripAtPrefix removes a leading "at" from a token, matching the wire
// convention that tokens are carried with that prefix but hashed and
// keyed without it.
func stripAtPrefix(token string) string {
	return strings.TrimPrefix(token, "at")
}

// DeriveAuthHash computes auth_hash = SHA-256(token without "at")[0:8].
func DeriveAuthHash(token string) [HashSize]byte {
	sum := sha256.Sum256([]byte(stripAtPrefix(token)))
	var out [HashSize]byte
	copy(out[:], sum[:HashSize])
	return out
}

// DeriveDeviceHash computes device_hash = SHA-256(serial)[0:8].
func DeriveDeviceHash(serial string) [HashSize]byte {
	sum := sha256.Sum256([]byte(serial))
	var out [HashSize]byte
	copy(out[:], sum[:HashSize])
	return out
}

// DeriveKey computes HMAC-SHA256(key=token without "at", msg=serial)[0:keyLen].
// keyLen must be 16 or 32 (AES-128 or AES-256 key sizes); any other value
// is a programmer error and panics, matching the teacher's posture on
// internal invariant violations.
func DeriveKey(token, serial string, keyLen int) []byte {
	if keyLen != 16 && keyLen != 32 {
		panic("identity: DeriveKey: keyLen must be 16 or 32")
	}
	mac := hmac.New(sha256.New, []byte(stripAtPrefix(token)))
	mac.Write([]byte(serial))
	sum := mac.Sum(nil)
	out := make([]byte, keyLen)
	copy(out, sum[:keyLen])
	return out
}

// Wipe zeroes b in place. Callers invoke it on derived keys and
// intermediate hash state once the AEAD call that consumed them returns,
// per spec §5's key-hygiene requirement.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
