// Command tagotip-vectors checks this build against the protocol's
// mandatory test vector (spec §8.4.5): identity derivation, envelope
// sealing, and envelope opening must all match the pinned byte sequence
// exactly, independent of whatever local test runner is in use.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/tagotip/tagotip/internal/aead"
	"github.com/tagotip/tagotip/internal/codec"
	"github.com/tagotip/tagotip/internal/envelope"
	"github.com/tagotip/tagotip/internal/identity"
)

type checkResult struct {
	Name   string
	Pass   bool
	Detail string
}

func main() {
	const (
		token  = "ate2bd319014b24e0a8aca9f00aea4c0d0"
		serial = "sensor-01"
		inner  = "sensor-01|[temp:=32]"
		counter = uint32(42)
	)

	wantAuthHash, _ := hex.DecodeString("4deedd7bab8817ec")
	wantDeviceHash, _ := hex.DecodeString("ab7788d22eb7372f")
	wantKey, _ := hex.DecodeString("fe09da81bc4400ee12ab56cd78ef9012")
	wantEnvelope, _ := hex.DecodeString(
		"000000002a4deedd7bab8817ecab7788d22eb7372f" +
			"c8c5aa56d755582bacea13bb572493bb8cb10803cf826fdb833b79c6",
	)

	var results []checkResult

	authHash := identity.DeriveAuthHash(token)
	results = append(results, checkBytes("auth_hash", authHash[:], wantAuthHash))

	deviceHash := identity.DeriveDeviceHash(serial)
	results = append(results, checkBytes("device_hash", deviceHash[:], wantDeviceHash))

	key := identity.DeriveKey(token, serial, 16)
	results = append(results, checkBytes("derived key", key, wantKey))

	sealed, err := envelope.Seal(aead.AES128CCM, envelope.MethodPush, []byte(inner), counter, authHash, deviceHash, key)
	if err != nil {
		results = append(results, checkResult{"seal envelope", false, err.Error()})
	} else {
		results = append(results, checkBytes("sealed envelope", sealed, wantEnvelope))
	}

	if sealed != nil {
		opened, err := envelope.Open(sealed, key)
		switch {
		case err != nil:
			results = append(results, checkResult{"open envelope", false, err.Error()})
		case opened.Header.Counter != counter:
			results = append(results, checkResult{"open envelope: counter", false, fmt.Sprintf("got %d, want %d", opened.Header.Counter, counter)})
		case opened.Header.Method() != envelope.MethodPush:
			results = append(results, checkResult{"open envelope: method", false, fmt.Sprintf("got %d, want Push", opened.Header.Method())})
		case !bytes.Equal(opened.Plaintext, []byte(inner)):
			results = append(results, checkResult{"open envelope: plaintext", false, fmt.Sprintf("got %q, want %q", opened.Plaintext, inner)})
		default:
			results = append(results, checkResult{"open envelope", true, ""})
		}
	}

	hf, err := codec.ParseHeadlessUplink(codec.Push, []byte(inner), codec.DefaultLimits())
	if err != nil {
		results = append(results, checkResult{"parse headless uplink", false, err.Error()})
	} else {
		results = append(results, checkResult{"parse headless uplink", hf.Serial == serial, fmt.Sprintf("serial=%q", hf.Serial)})
	}

	failed := 0
	for _, r := range results {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
			failed++
		}
		if r.Detail != "" {
			fmt.Printf("[%s] %s (%s)\n", status, r.Name, r.Detail)
		} else {
			fmt.Printf("[%s] %s\n", status, r.Name)
		}
	}

	if failed > 0 {
		log.Printf("%d/%d checks failed", failed, len(results))
		os.Exit(1)
	}
	fmt.Printf("all %d checks passed\n", len(results))
}

func checkBytes(name string, got, want []byte) checkResult {
	if bytes.Equal(got, want) {
		return checkResult{name, true, ""}
	}
	return checkResult{name, false, fmt.Sprintf("got %s, want %s", hex.EncodeToString(got), hex.EncodeToString(want))}
}
