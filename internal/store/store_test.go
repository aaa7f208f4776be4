package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetPutDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "unit/a7:pod-123")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := Record{"status": "in_progress", "attempts": "1"}
	require.NoError(t, s.Put(ctx, "unit/a7:pod-123", rec))

	got, err := s.Get(ctx, "unit/a7:pod-123")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Returned record is a copy
	got["status"] = "mutated"
	again, err := s.Get(ctx, "unit/a7:pod-123")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", again["status"])

	require.NoError(t, s.Delete(ctx, "unit/a7:pod-123"))
	_, err = s.Get(ctx, "unit/a7:pod-123")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is fine
	assert.NoError(t, s.Delete(ctx, "unit/missing"))
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "task/1", Record{"status": "completed"}))
	require.NoError(t, s.Put(ctx, "task/2", Record{"status": "failed"}))
	require.NoError(t, s.Put(ctx, "unit/a7:pod-123", Record{"status": "pending"}))

	tasks, err := s.List(ctx, "task/")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "completed", tasks["1"]["status"])
	assert.Equal(t, "failed", tasks["2"]["status"])

	none, err := s.List(ctx, "alert/")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordClone(t *testing.T) {
	var nilRec Record
	assert.Nil(t, nilRec.Clone())

	rec := Record{"a": "1"}
	clone := rec.Clone()
	clone["a"] = "2"
	assert.Equal(t, "1", rec["a"])
}

func TestEncodeDecodeKey(t *testing.T) {
	tests := []string{
		"task/1",
		"unit/a7:pod-123",
		"alert/ci-build/deadbeef",
		"weird key=with spaces",
		"",
	}

	for _, key := range tests {
		encoded := encodeKey(key)
		assert.Equal(t, key, decodeKey(encoded), "round trip %q", key)
		for i := 0; i < len(encoded); i++ {
			c := encoded[i]
			valid := c == '-' || c == '_' || c == '.' || c == '/' || c == '=' ||
				(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			assert.True(t, valid, "char %q in encoded key %q", string(c), encoded)
		}
	}
}
