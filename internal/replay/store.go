// Package replay is the caller-side device registry and counter-replay
// guard spec §6 places outside the core: it maps a device's auth_hash and
// device_hash back to the long-lived token and serial the core needs to
// derive keys, and it enforces the monotonic-counter acceptance policy an
// envelope's Header.Counter must satisfy before Open's result is trusted.
package replay

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tagotip/tagotip/internal/identity"
)

// ErrNotRegistered is returned when a serial has no registered device
// record.
var ErrNotRegistered = errors.New("replay: device not registered")

// ErrCounterNotMonotonic is returned when an observed counter does not
// strictly exceed the last accepted counter for that device.
var ErrCounterNotMonotonic = errors.New("replay: counter is not greater than last accepted value")

// DeviceRecord is everything the gateway needs to verify and decrypt
// traffic from one device: its token and serial (to re-derive auth_hash,
// device_hash and the AEAD key) and the cipher suite it was provisioned
// with.
type DeviceRecord struct {
	Serial string `json:"serial"`
	Token  string `json:"token"`
	KeyLen int    `json:"key_len"`
	Suite  string `json:"suite"`
}

// Store is a Redis-backed device registry and replay guard, namespaced
// under a configurable key prefix so multiple gateway deployments can
// share one Redis instance without colliding.
type Store struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewStore wraps an existing go-redis client. keyPrefix defaults to
// "tagotip:" and ttl to 0 (no expiry) when left zero-valued.
func NewStore(rdb *redis.Client, keyPrefix string, ttl time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = "tagotip:"
	}
	return &Store{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *Store) deviceKey(serial string) string {
	return s.keyPrefix + "device:" + serial
}

func (s *Store) counterKey(serial string) string {
	return s.keyPrefix + "counter:" + serial
}

func (s *Store) hashIndexKey(deviceHash [identity.HashSize]byte) string {
	return s.keyPrefix + "hash:" + hex.EncodeToString(deviceHash[:])
}

// Register persists or updates a device's provisioning record and indexes
// it by its device_hash, so an inbound envelope (which carries only the
// hash, never the serial in the clear) can be routed back to a record.
func (s *Store) Register(ctx context.Context, rec DeviceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("replay: marshal device record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.deviceKey(rec.Serial), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("replay: redis SET device: %w", err)
	}

	deviceHash := identity.DeriveDeviceHash(rec.Serial)
	if err := s.rdb.Set(ctx, s.hashIndexKey(deviceHash), rec.Serial, s.ttl).Err(); err != nil {
		return fmt.Errorf("replay: redis SET hash index: %w", err)
	}
	return nil
}

// LookupByDeviceHash resolves an envelope's device_hash back to the
// device record that produced it, via the hash index Register maintains.
func (s *Store) LookupByDeviceHash(ctx context.Context, deviceHash [identity.HashSize]byte) (DeviceRecord, error) {
	serial, err := s.rdb.Get(ctx, s.hashIndexKey(deviceHash)).Result()
	if errors.Is(err, redis.Nil) {
		return DeviceRecord{}, ErrNotRegistered
	}
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("replay: redis GET hash index: %w", err)
	}
	return s.Lookup(ctx, serial)
}

// Lookup retrieves the device record for a serial.
func (s *Store) Lookup(ctx context.Context, serial string) (DeviceRecord, error) {
	data, err := s.rdb.Get(ctx, s.deviceKey(serial)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DeviceRecord{}, ErrNotRegistered
	}
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("replay: redis GET device: %w", err)
	}
	var rec DeviceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DeviceRecord{}, fmt.Errorf("replay: unmarshal device record: %w", err)
	}
	return rec, nil
}

// acceptCounterScript atomically accepts counter only if it is strictly
// greater than the value currently stored for the key, matching the
// monotonic-counter acceptance policy spec §6 requires of a caller: a
// device that is reset, or replayed by an attacker, must not be able to
// reuse or rewind a previously accepted counter value.
const acceptCounterScript = `
local current = redis.call('GET', KEYS[1])
local candidate = tonumber(ARGV[1])
if current and tonumber(current) >= candidate then
	return 0
end
redis.call('SET', KEYS[1], candidate)
return 1
`

// AcceptCounter applies the monotonic acceptance policy for a device's
// envelope counter. It returns ErrCounterNotMonotonic when the candidate
// does not strictly exceed the last accepted value.
func (s *Store) AcceptCounter(ctx context.Context, serial string, counter uint32) error {
	res, err := s.rdb.Eval(ctx, acceptCounterScript, []string{s.counterKey(serial)}, counter).Int()
	if err != nil {
		return fmt.Errorf("replay: eval accept-counter: %w", err)
	}
	if res == 0 {
		return ErrCounterNotMonotonic
	}
	return nil
}

// LastCounter returns the last accepted counter for a device, or 0 if
// none has been accepted yet.
func (s *Store) LastCounter(ctx context.Context, serial string) (uint32, error) {
	v, err := s.rdb.Get(ctx, s.counterKey(serial)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("replay: redis GET counter: %w", err)
	}
	return uint32(v), nil
}
