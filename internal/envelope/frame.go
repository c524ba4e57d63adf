// Package envelope implements the TagoTiP/S binary layer: the 21-byte
// envelope header, flag packing, nonce construction, and the seal/open
// entry points that wrap an AEAD cipher suite from internal/aead around a
// headless text frame. This is the binary-layer analogue of the AOCS
// frame header the teacher protocol used, scaled down from a 110-byte
// session header to TagoTiP/S's compact 21-byte routing header.
package envelope

import (
	"encoding/binary"

	"github.com/tagotip/tagotip/internal/aead"
)

// EnvelopeMethod identifies the 3-bit method field of the header flags
// byte — distinct from codec.Method because Ack is representable here but
// not on the uplink text grammar.
type EnvelopeMethod uint8

const (
	MethodPush EnvelopeMethod = 0
	MethodPull EnvelopeMethod = 1
	MethodPing EnvelopeMethod = 2
	MethodAck  EnvelopeMethod = 3
)

// HeaderSize is the fixed TagoTiP/S envelope header width (spec §3).
const HeaderSize = 21

// ReservedFlagsByte is 0x41 ("A"), reserved so a plaintext "ACK…" frame
// can never be mistaken for an envelope (spec §4.5, §4.6).
const ReservedFlagsByte = 0x41

// MaxInnerLen is the plaintext length ceiling shared with the text layer.
const MaxInnerLen = 16384

// Header is the 21-byte fixed envelope header: flags, counter, auth_hash,
// device_hash.
type Header struct {
	Flags      byte
	Counter    uint32
	AuthHash   [8]byte
	DeviceHash [8]byte
}

// packFlags builds the flags byte: cipher(3b) | version(2b) | method(3b).
func packFlags(suite aead.Suite, version uint8, method EnvelopeMethod) byte {
	return byte(suite&0x7)<<5 | (version&0x3)<<3 | byte(method&0x7)
}

// Suite extracts the 3-bit cipher field from Flags.
func (h Header) Suite() aead.Suite {
	return aead.Suite((h.Flags >> 5) & 0x7)
}

// Version extracts the 2-bit version field from Flags.
func (h Header) Version() uint8 {
	return (h.Flags >> 3) & 0x3
}

// Method extracts the 3-bit method field from Flags.
func (h Header) Method() EnvelopeMethod {
	return EnvelopeMethod(h.Flags & 0x7)
}

// Marshal writes the header to its canonical 21-byte wire form.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Flags
	binary.BigEndian.PutUint32(buf[1:5], h.Counter)
	copy(buf[5:13], h.AuthHash[:])
	copy(buf[13:21], h.DeviceHash[:])
	return buf
}

// unmarshalHeader parses the first HeaderSize bytes of data into a Header.
// It does not validate flags; callers run validateHeader separately so
// ParseEnvelopeHeader can expose routing fields even for an otherwise
// invalid envelope.
func unmarshalHeader(data []byte) Header {
	var h Header
	h.Flags = data[0]
	h.Counter = binary.BigEndian.Uint32(data[1:5])
	copy(h.AuthHash[:], data[5:13])
	copy(h.DeviceHash[:], data[13:21])
	return h
}

func validateHeader(h Header) error {
	if h.Flags == ReservedFlagsByte {
		return newCryptoError(ReservedFlags)
	}
	if h.Version() != 0 {
		return newCryptoError(UnsupportedVersion)
	}
	if !h.Suite().Valid() {
		return newCryptoError(UnsupportedCipher)
	}
	if h.Method() > MethodAck {
		return newCryptoError(InvalidMethod)
	}
	return nil
}

// IsEnvelope reports whether bytes could be a TagoTiP/S envelope rather
// than a plaintext ACK frame, per spec §4.6: false iff empty or the first
// byte is the reserved flags byte 0x41 ("A").
func IsEnvelope(data []byte) bool {
	return len(data) > 0 && data[0] != ReservedFlagsByte
}

// ParseEnvelopeHeader parses and validates just the header, for server-side
// routing by auth_hash/device_hash before any key lookup or decryption.
func ParseEnvelopeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, newCryptoError(EnvelopeTooShort)
	}
	h := unmarshalHeader(data)
	if err := validateHeader(h); err != nil {
		return Header{}, err
	}
	return h, nil
}
