package envelope

import "github.com/tagotip/tagotip/internal/aead"

// Opened is the result of a successful Open: the validated header plus
// the decrypted inner frame bytes.
type Opened struct {
	Header    Header
	Plaintext []byte
}

// Seal builds a TagoTiP/S envelope around inner, per spec §4.5's five-step
// Seal contract: validate length and key, pack the header, derive the
// nonce, encrypt, and emit header‖ciphertext‖tag.
func Seal(suite aead.Suite, method EnvelopeMethod, inner []byte, counter uint32, authHash, deviceHash [8]byte, key []byte) ([]byte, error) {
	if inner == nil {
		return nil, newCryptoError(NullInput)
	}
	if len(inner) > MaxInnerLen {
		return nil, newCryptoError(InnerTooLarge)
	}
	if len(key) != suite.KeySize() {
		return nil, newCryptoError(InvalidKeySize)
	}
	if !suite.Valid() {
		return nil, newCryptoError(UnsupportedCipher)
	}

	h := Header{
		Flags:      packFlags(suite, 0, method),
		Counter:    counter,
		AuthHash:   authHash,
		DeviceHash: deviceHash,
	}
	if h.Flags == ReservedFlagsByte {
		return nil, newCryptoError(ReservedFlags)
	}
	header := h.Marshal()

	engine, err := aead.NewEngine(suite, key)
	if err != nil {
		return nil, newCryptoError(InvalidKeySize)
	}
	nonce := buildNonce(engine.NonceSize(), h.Flags, deviceHash, counter)

	out := make([]byte, 0, HeaderSize+len(inner)+engine.TagSize())
	out = append(out, header...)
	out, err = engine.Seal(out, nonce, inner, header)
	if err != nil {
		return nil, newCryptoError(DecryptionFailed)
	}
	return out, nil
}

// Open validates and decrypts an envelope, returning its header and the
// recovered headless frame bytes. On any authentication failure the
// returned plaintext is nil and no partial plaintext is retained.
func Open(data []byte, key []byte) (Opened, error) {
	header, err := ParseEnvelopeHeader(data)
	if err != nil {
		return Opened{}, err
	}
	suite := header.Suite()
	if len(key) != suite.KeySize() {
		return Opened{}, newCryptoError(InvalidKeySize)
	}
	engine, err := aead.NewEngine(suite, key)
	if err != nil {
		return Opened{}, newCryptoError(UnsupportedCipher)
	}
	if len(data) < HeaderSize+engine.TagSize() {
		return Opened{}, newCryptoError(EnvelopeTooShort)
	}

	headerBytes := data[:HeaderSize]
	ciphertext := data[HeaderSize:]
	nonce := buildNonce(engine.NonceSize(), header.Flags, header.DeviceHash, header.Counter)

	plain, err := engine.Open(nil, nonce, ciphertext, headerBytes)
	if err != nil {
		return Opened{}, newCryptoError(DecryptionFailed)
	}
	return Opened{Header: header, Plaintext: plain}, nil
}
