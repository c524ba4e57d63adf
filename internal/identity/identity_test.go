package identity

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveAuthHashEmptyTokenVector(t *testing.T) {
	got := DeriveAuthHash("at")
	want, _ := hex.DecodeString("e3b0c44298fc1c14")
	assert.Equal(t, want, got[:])
}

func TestDeriveDeviceHashVector(t *testing.T) {
	got := DeriveDeviceHash("abc")
	want, _ := hex.DecodeString("ba7816bf8f01cfea")
	assert.Equal(t, want, got[:])
}

func TestMandatoryVectorHashes(t *testing.T) {
	token := "ate2bd319014b24e0a8aca9f00aea4c0d0"
	serial := "sensor-01"

	authHash := DeriveAuthHash(token)
	wantAuth, _ := hex.DecodeString("4deedd7bab8817ec")
	assert.Equal(t, wantAuth, authHash[:])

	deviceHash := DeriveDeviceHash(serial)
	wantDevice, _ := hex.DecodeString("ab7788d22eb7372f")
	assert.Equal(t, wantDevice, deviceHash[:])

	key := DeriveKey(token, serial, 16)
	wantKey, _ := hex.DecodeString("fe09da81bc4400ee12ab56cd78ef9012")
	assert.Equal(t, wantKey, key)
}
