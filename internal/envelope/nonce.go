package envelope

import "encoding/binary"

// buildNonce constructs the AEAD nonce from the header's flags, device
// hash and counter, per spec §4.5. CCM gets a 13-byte nonce with 4 zero
// bytes before the device hash; GCM and ChaCha20-Poly1305 get a 12-byte
// nonce with 3. Both share the same trailing
// [device_hash[0..4]:4][counter:4 big-endian] suffix.
func buildNonce(nonceSize int, flags byte, deviceHash [8]byte, counter uint32) []byte {
	nonce := make([]byte, nonceSize)
	nonce[0] = flags
	zeros := nonceSize - 1 - 4 - 4
	copy(nonce[1+zeros:1+zeros+4], deviceHash[:4])
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], counter)
	return nonce
}
