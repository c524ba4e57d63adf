package aead

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMandatoryAES128CCMVector(t *testing.T) {
	key, err := hex.DecodeString("fe09da81bc4400ee12ab56cd78ef9012")
	require.NoError(t, err)
	nonce, err := hex.DecodeString("0000000000ab7788d20000002a")
	require.NoError(t, err)
	require.Len(t, nonce, 13)

	header, err := hex.DecodeString("000000002a4deedd7bab8817ecab7788d22eb7372f")
	require.NoError(t, err)
	require.Len(t, header, 21)

	plaintext := []byte("sensor-01|[temp:=32]")
	wantCiphertext, err := hex.DecodeString("c8c5aa56d755582bacea13bb572493bb8cb10803cf826fdb833b79c6")
	require.NoError(t, err)

	engine, err := NewEngine(AES128CCM, key)
	require.NoError(t, err)
	got, err := engine.Seal(nil, nonce, plaintext, header)
	require.NoError(t, err)
	assert.Equal(t, wantCiphertext, got)

	opened, err := engine.Open(nil, nonce, got, header)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestCCMTamperDetected(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	nonce := bytes.Repeat([]byte{0x22}, 13)
	aad := []byte("header")
	plaintext := []byte("payload")

	engine, err := NewEngine(AES128CCM, key)
	require.NoError(t, err)
	sealed, err := engine.Seal(nil, nonce, plaintext, aad)
	require.NoError(t, err)

	for i := range sealed {
		tampered := append([]byte(nil), sealed...)
		tampered[i] ^= 0x01
		out, err := engine.Open(make([]byte, 0, len(plaintext)), nonce, tampered, aad)
		assert.Error(t, err, "byte %d", i)
		assert.Nil(t, out)
	}
}

func TestGCMRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	nonce := bytes.Repeat([]byte{0x01}, 12)
	engine, err := NewEngine(AES256GCM, key)
	require.NoError(t, err)

	sealed, err := engine.Seal(nil, nonce, []byte("hello"), []byte("aad"))
	require.NoError(t, err)
	opened, err := engine.Open(nil, nonce, sealed, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(opened))

	_, err = engine.Open(nil, nonce, sealed, []byte("wrong-aad"))
	assert.Error(t, err)
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 32)
	nonce := bytes.Repeat([]byte{0x03}, 12)
	engine, err := NewEngine(ChaCha20Poly1305, key)
	require.NoError(t, err)

	sealed, err := engine.Seal(nil, nonce, []byte("uplink"), []byte("header"))
	require.NoError(t, err)
	opened, err := engine.Open(nil, nonce, sealed, []byte("header"))
	require.NoError(t, err)
	assert.Equal(t, "uplink", string(opened))
}

func TestSuiteSizes(t *testing.T) {
	assert.Equal(t, 16, AES128CCM.KeySize())
	assert.Equal(t, 32, AES256GCM.KeySize())
	assert.Equal(t, 8, AES128CCM.TagSize())
	assert.Equal(t, 16, ChaCha20Poly1305.TagSize())
	assert.Equal(t, 13, AES256CCM.NonceSize())
	assert.Equal(t, 12, AES128GCM.NonceSize())
}
