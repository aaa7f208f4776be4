package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// KVStore persists records in a NATS JetStream key-value bucket.
//
// Record keys are hex-escaped into the KV key charset, so arbitrary dedup
// keys ("unit/a7:pod-123") survive the round trip.
type KVStore struct {
	kv nats.KeyValue
}

// NewKVStore binds to the named bucket, creating it when absent. The NATS
// connection stays owned by the caller.
func NewKVStore(nc *nats.Conn, bucket string) (*KVStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  bucket,
			History: 1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}

	return &KVStore{kv: kv}, nil
}

// Get implements Store.
func (s *KVStore) Get(ctx context.Context, key string) (Record, error) {
	entry, err := s.kv.Get(encodeKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, fmt.Errorf("kv get %s: malformed record: %w", key, err)
	}
	return rec, nil
}

// Put implements Store.
func (s *KVStore) Put(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	if _, err := s.kv.Put(encodeKey(key), data); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(encodeKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *KVStore) List(ctx context.Context, prefix string) (map[string]Record, error) {
	keys, err := s.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv list: %w", err)
	}

	out := make(map[string]Record)
	for _, encoded := range keys {
		key := decodeKey(encoded)
		suffix, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		rec, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			// Deleted between Keys and Get
			continue
		}
		if err != nil {
			return nil, err
		}
		out[suffix] = rec
	}
	return out, nil
}

// Close implements Store.
func (s *KVStore) Close() error {
	return nil
}

// encodeKey maps a record key into the KV key charset. Bytes outside
// [-/_.a-zA-Z0-9] become "=XX" hex escapes; '=' itself is escaped so
// decoding is unambiguous.
func encodeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '/':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02x", c)
		}
	}
	return b.String()
}

// decodeKey reverses encodeKey. Malformed escapes pass through verbatim.
func decodeKey(encoded string) string {
	var b strings.Builder
	b.Grow(len(encoded))
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c == '=' && i+2 < len(encoded) {
			var v int
			if _, err := fmt.Sscanf(encoded[i+1:i+3], "%02x", &v); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
