// Package store persists the flat string-keyed records remedyd treats as its
// source of truth: task records, remediation units, open alerts. Records are
// read-many/write-rarely with single-record upserts; concurrent writers
// resolve last-write-wins and the domain self-corrects on the next poll.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists under a key.
var ErrNotFound = errors.New("record not found")

// Record is one flat record. Values are opaque strings.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the persisted record store.
//
// Keys are slash-separated paths ("task/7", "unit/a7:pod-123"); List returns
// every record whose key starts with the given prefix, keyed by the
// remainder after the prefix.
type Store interface {
	// Get returns the record under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Put upserts the record under key.
	Put(ctx context.Context, key string, rec Record) error

	// Delete removes the record under key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// List returns all records under prefix, keyed by the key suffix.
	List(ctx context.Context, prefix string) (map[string]Record, error)

	// Close releases any underlying resources.
	Close() error
}
