package envelope

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagotip/tagotip/internal/aead"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestMandatoryEnvelopeVector(t *testing.T) {
	authHash := [8]byte{}
	copy(authHash[:], mustHex(t, "4deedd7bab8817ec"))
	deviceHash := [8]byte{}
	copy(deviceHash[:], mustHex(t, "ab7788d22eb7372f"))
	key := mustHex(t, "fe09da81bc4400ee12ab56cd78ef9012")
	inner := []byte("sensor-01|[temp:=32]")

	wantEnvelope := mustHex(t,
		"000000002a4deedd7bab8817ecab7788d22eb7372f"+
			"c8c5aa56d755582bacea13bb572493bb8cb10803cf826fdb833b79c6")
	require.Len(t, wantEnvelope, 49)

	got, err := Seal(aead.AES128CCM, MethodPush, inner, 42, authHash, deviceHash, key)
	require.NoError(t, err)
	assert.Equal(t, wantEnvelope, got)

	opened, err := Open(got, key)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), opened.Header.Counter)
	assert.Equal(t, MethodPush, opened.Header.Method())
	assert.Equal(t, inner, opened.Plaintext)
}

func TestReservedFlagsByteRejected(t *testing.T) {
	envelope := make([]byte, HeaderSize+24)
	envelope[0] = ReservedFlagsByte
	_, err := ParseEnvelopeHeader(envelope)
	require.Error(t, err)
	assert.Equal(t, ReservedFlags, err.(*CryptoError).Kind)

	_, err = Open(envelope, make([]byte, 16))
	require.Error(t, err)
	assert.Equal(t, ReservedFlags, err.(*CryptoError).Kind)
}

func TestTamperAnyByteFailsAuthentication(t *testing.T) {
	key := mustHex(t, "fe09da81bc4400ee12ab56cd78ef9012")
	authHash := [8]byte{0x4d, 0xee, 0xdd, 0x7b, 0xab, 0x88, 0x17, 0xec}
	deviceHash := [8]byte{0xab, 0x77, 0x88, 0xd2, 0x2e, 0xb7, 0x37, 0x2f}

	sealed, err := Seal(aead.AES128CCM, MethodPush, []byte("sensor-01|[temp:=32]"), 42, authHash, deviceHash, key)
	require.NoError(t, err)

	for i := range sealed {
		tampered := append([]byte(nil), sealed...)
		tampered[i] ^= 0x01
		if tampered[0] == ReservedFlagsByte {
			continue // a different, equally valid rejection path
		}
		_, err := Open(tampered, key)
		assert.Error(t, err, "byte %d", i)
	}
}

func TestIsEnvelopeDisambiguator(t *testing.T) {
	assert.False(t, IsEnvelope(nil))
	assert.False(t, IsEnvelope([]byte("ACK|OK")))
	assert.True(t, IsEnvelope([]byte{0x00, 0x01, 0x02}))
}

func TestInnerTooLargeRejected(t *testing.T) {
	key := make([]byte, 16)
	big := make([]byte, MaxInnerLen+1)
	_, err := Seal(aead.AES128CCM, MethodPush, big, 0, [8]byte{}, [8]byte{}, key)
	require.Error(t, err)
	assert.Equal(t, InnerTooLarge, err.(*CryptoError).Kind)
}
