package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// AES-CCM has no configurable-tag-size implementation in the standard
// library or golang.org/x/crypto; crypto/cipher only ships a 16-byte-tag
// GCM. TagSize=8 (spec §3) requires the construction from NIST SP
// 800-38C / RFC 3610 by hand, grounded on the same B0/CBC-MAC/CTR
// structure used by Matter's AES-CCM (see DESIGN.md).

const aesBlockSize = 16

// ccmLenSize is L, the length-field size in bytes. With a 13-byte nonce,
// L = 15 - 13 = 2, giving a 64KiB message-length ceiling that comfortably
// covers the 16384-byte frame cap.
const ccmLenSize = 2

var errCCMAuthFailed = errors.New("aead: ccm authentication failed")

type ccmEngine struct {
	suite   Suite
	block   cipher.Block
	tagSize int
}

func newCCMEngine(suite Suite, key []byte, keySize int) (Engine, error) {
	if len(key) != keySize {
		return nil, errors.New("aead: invalid CCM key size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &ccmEngine{suite: suite, block: block, tagSize: suite.TagSize()}, nil
}

func (e *ccmEngine) Suite() Suite    { return e.suite }
func (e *ccmEngine) KeySize() int    { return e.suite.KeySize() }
func (e *ccmEngine) NonceSize() int  { return 13 }
func (e *ccmEngine) TagSize() int    { return e.tagSize }

func (e *ccmEngine) Seal(dst, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, errors.New("aead: invalid CCM nonce size")
	}
	maxLen := (1 << (8 * ccmLenSize)) - 1
	if len(plaintext) > maxLen {
		return nil, errors.New("aead: CCM plaintext too long")
	}

	tag := e.computeTag(nonce, plaintext, aad)
	s0 := e.generateS0(nonce)

	ret, out := sliceForAppend(dst, len(plaintext)+e.tagSize)
	e.ctrEncrypt(nonce, out[:len(plaintext)], plaintext)
	for i := 0; i < e.tagSize; i++ {
		out[len(plaintext)+i] = tag[i] ^ s0[i]
	}
	return ret, nil
}

func (e *ccmEngine) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, errors.New("aead: invalid CCM nonce size")
	}
	if len(ciphertext) < e.tagSize {
		return nil, errCCMAuthFailed
	}
	encData := ciphertext[:len(ciphertext)-e.tagSize]
	encTag := ciphertext[len(ciphertext)-e.tagSize:]

	s0 := e.generateS0(nonce)
	recvTag := make([]byte, e.tagSize)
	for i := 0; i < e.tagSize; i++ {
		recvTag[i] = encTag[i] ^ s0[i]
	}

	ret, out := sliceForAppend(dst, len(encData))
	plain := out[:len(encData)]
	e.ctrEncrypt(nonce, plain, encData)

	expectedTag := e.computeTag(nonce, plain, aad)
	if subtle.ConstantTimeCompare(recvTag, expectedTag[:e.tagSize]) != 1 {
		for i := range plain {
			plain[i] = 0
		}
		return nil, errCCMAuthFailed
	}
	return ret, nil
}

// computeTag runs CBC-MAC over B0, AAD (length-prefixed), then plaintext.
func (e *ccmEngine) computeTag(nonce, plaintext, aad []byte) []byte {
	var b0 [aesBlockSize]byte
	flags := byte(0)
	if len(aad) > 0 {
		flags |= 1 << 6
	}
	flags |= byte((e.tagSize-2)/2) << 3
	flags |= byte(ccmLenSize - 1)
	b0[0] = flags
	copy(b0[1:1+len(nonce)], nonce)
	putLength(b0[1+len(nonce):], len(plaintext))

	mac := make([]byte, aesBlockSize)
	e.block.Encrypt(mac, b0[:])

	if len(aad) > 0 {
		var hdr [aesBlockSize]byte
		var headerLen int
		aadLen := len(aad)
		if aadLen < (1<<16)-(1<<8) {
			binary.BigEndian.PutUint16(hdr[0:2], uint16(aadLen))
			headerLen = 2
		} else {
			hdr[0], hdr[1] = 0xFF, 0xFE
			binary.BigEndian.PutUint32(hdr[2:6], uint32(aadLen))
			headerLen = 6
		}
		firstBlock := aesBlockSize - headerLen
		if firstBlock > aadLen {
			firstBlock = aadLen
		}
		copy(hdr[headerLen:], aad[:firstBlock])
		xorBlock(mac, hdr[:])
		e.block.Encrypt(mac, mac)

		remaining := aad[firstBlock:]
		for len(remaining) > 0 {
			var block [aesBlockSize]byte
			n := copy(block[:], remaining)
			remaining = remaining[n:]
			xorBlock(mac, block[:])
			e.block.Encrypt(mac, mac)
		}
	}

	remaining := plaintext
	for len(remaining) > 0 {
		var block [aesBlockSize]byte
		n := copy(block[:], remaining)
		remaining = remaining[n:]
		xorBlock(mac, block[:])
		e.block.Encrypt(mac, mac)
	}
	return mac[:e.tagSize]
}

// generateS0 is S_0 = E(K, A_0) with counter 0, used to mask the tag.
func (e *ccmEngine) generateS0(nonce []byte) []byte {
	var a0 [aesBlockSize]byte
	a0[0] = byte(ccmLenSize - 1)
	copy(a0[1:1+len(nonce)], nonce)
	s0 := make([]byte, aesBlockSize)
	e.block.Encrypt(s0, a0[:])
	return s0
}

// ctrEncrypt runs CTR mode starting at counter 1, per RFC 3610 §2.3.
func (e *ccmEngine) ctrEncrypt(nonce, dst, src []byte) {
	var ctr [aesBlockSize]byte
	ctr[0] = byte(ccmLenSize - 1)
	copy(ctr[1:1+len(nonce)], nonce)
	ctr[aesBlockSize-1] = 1

	var keystream [aesBlockSize]byte
	for i := 0; i < len(src); i += aesBlockSize {
		e.block.Encrypt(keystream[:], ctr[:])
		end := i + aesBlockSize
		if end > len(src) {
			end = len(src)
		}
		for j := i; j < end; j++ {
			dst[j] = src[j] ^ keystream[j-i]
		}
		incrementCounter(ctr[aesBlockSize-ccmLenSize:])
	}
}

func putLength(dst []byte, length int) {
	for i := ccmLenSize - 1; i >= 0; i-- {
		dst[i] = byte(length)
		length >>= 8
	}
}

func incrementCounter(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}

func xorBlock(dst, src []byte) {
	for i := 0; i < aesBlockSize; i++ {
		dst[i] ^= src[i]
	}
}

// sliceForAppend extends dst by n bytes, reusing spare capacity when
// available, matching the pattern crypto/cipher.AEAD implementations use.
func sliceForAppend(dst []byte, n int) (head, tail []byte) {
	total := len(dst) + n
	if cap(dst) >= total {
		head = dst[:total]
	} else {
		head = make([]byte, total)
		copy(head, dst)
	}
	tail = head[len(dst):]
	return
}
