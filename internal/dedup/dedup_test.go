package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/signal"
	"github.com/fyrsmithlabs/remedyd/internal/store"
)

// mockUnits implements UnitChecker for testing.
type mockUnits struct {
	open map[string]bool
	err  error
}

func (m *mockUnits) HasOpenUnit(ctx context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.open[key], nil
}

// failingStore wraps a store and fails every call.
type failingStore struct {
	store.Store
}

func (f *failingStore) List(ctx context.Context, prefix string) (map[string]store.Record, error) {
	return nil, errors.New("store down")
}

func newTestFilter(units *mockUnits, st store.Store, window time.Duration) (*Filter, func(time.Time)) {
	f := NewFilter(units, st, NewCache(0), window, nil)
	setNow := func(t time.Time) {
		f.now = func() time.Time { return t }
	}
	setNow(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	return f, setNow
}

func sig(sigType, target string) *signal.Signal {
	s := &signal.Signal{Type: sigType, Target: target}
	s.Normalize(time.Now())
	return s
}

func TestShouldSuppress_ExactKey(t *testing.T) {
	units := &mockUnits{open: map[string]bool{"a7:pod-123": true}}
	f, _ := newTestFilter(units, store.NewMemoryStore(), 30*time.Minute)

	d := f.ShouldSuppress(context.Background(), sig("a7", "pod-123"))
	assert.True(t, d.SuppressSpawn)
	assert.Contains(t, d.Reason, "a7:pod-123")

	// Different target, same type: no open unit, spawn allowed
	d = f.ShouldSuppress(context.Background(), sig("a7", "pod-456"))
	assert.False(t, d.SuppressSpawn)
}

func TestShouldSuppress_TypeWindow(t *testing.T) {
	units := &mockUnits{open: map[string]bool{}}
	st := store.NewMemoryStore()
	f, setNow := newTestFilter(units, st, 30*time.Minute)
	ctx := context.Background()

	first := sig("a7", "pod-123")
	d := f.ShouldSuppress(ctx, first)
	assert.False(t, d.SuppressAlert)
	require.NoError(t, f.RecordAlert(ctx, first))

	// Same type, different target, 5 minutes later: alert suppressed
	setNow(time.Date(2026, 8, 24, 12, 5, 0, 0, time.UTC))
	d = f.ShouldSuppress(ctx, sig("a7", "pod-456"))
	assert.True(t, d.SuppressAlert)
	assert.False(t, d.SuppressSpawn, "window dedup must not block the spawn")

	// Other type is unaffected
	d = f.ShouldSuppress(ctx, sig("a2", "pod-456"))
	assert.False(t, d.SuppressAlert)

	// After the window passes, alerts reopen
	setNow(time.Date(2026, 8, 24, 12, 31, 0, 0, time.UTC))
	d = f.ShouldSuppress(ctx, sig("a7", "pod-789"))
	assert.False(t, d.SuppressAlert)
}

func TestShouldSuppress_FailsOpenOnUnitLookup(t *testing.T) {
	units := &mockUnits{err: errors.New("store down")}
	f, _ := newTestFilter(units, store.NewMemoryStore(), 30*time.Minute)

	d := f.ShouldSuppress(context.Background(), sig("a7", "pod-123"))
	assert.False(t, d.SuppressSpawn)
	assert.False(t, d.SuppressAlert)
}

func TestShouldSuppress_FailsOpenOnAlertLookup(t *testing.T) {
	units := &mockUnits{open: map[string]bool{}}
	f, _ := newTestFilter(units, &failingStore{Store: store.NewMemoryStore()}, 30*time.Minute)

	d := f.ShouldSuppress(context.Background(), sig("a7", "pod-123"))
	assert.False(t, d.SuppressAlert)
}

func TestShouldSuppress_DuplicateSignalScenario(t *testing.T) {
	// The same {type, target} arriving twice within 5 minutes must yield
	// exactly one spawn and one alert.
	units := &mockUnits{open: map[string]bool{}}
	st := store.NewMemoryStore()
	f, setNow := newTestFilter(units, st, 30*time.Minute)
	ctx := context.Background()

	first := sig("a7", "pod-123")
	d := f.ShouldSuppress(ctx, first)
	require.False(t, d.SuppressSpawn)
	require.False(t, d.SuppressAlert)

	// Pipeline reacts: unit opened, alert recorded
	units.open[first.Key()] = true
	require.NoError(t, f.RecordAlert(ctx, first))

	setNow(time.Date(2026, 8, 24, 12, 5, 0, 0, time.UTC))
	second := sig("a7", "pod-123")
	d = f.ShouldSuppress(ctx, second)
	assert.True(t, d.SuppressSpawn)
	assert.True(t, d.SuppressAlert)
}

func TestResolveAlert(t *testing.T) {
	units := &mockUnits{open: map[string]bool{}}
	st := store.NewMemoryStore()
	f, setNow := newTestFilter(units, st, 30*time.Minute)
	ctx := context.Background()

	first := sig("a7", "pod-123")
	require.NoError(t, f.RecordAlert(ctx, first))
	require.NoError(t, f.ResolveAlert(ctx, first))

	setNow(time.Date(2026, 8, 24, 12, 1, 0, 0, time.UTC))
	d := f.ShouldSuppress(ctx, sig("a7", "pod-456"))
	assert.False(t, d.SuppressAlert)
}

func TestCache(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	c := NewCache(5 * time.Minute)

	_, ok := c.Get("a7", now)
	assert.False(t, ok)

	c.Set("a7", now, now)
	got, ok := c.Get("a7", now.Add(4*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, now, got)

	_, ok = c.Get("a7", now.Add(6*time.Minute))
	assert.False(t, ok)

	// Disabled cache never hits
	off := NewCache(0)
	off.Set("a7", now, now)
	_, ok = off.Get("a7", now)
	assert.False(t, ok)
}

func TestTypeFamily(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a7", "a7"},
		{"ci-build", "ci-build"},
		{"ci-build-1234", "ci-build"},
		{"ci-build-1234-5678", "ci-build"},
		{"ci-build-deadbeef01", "ci-build"},
		{"ci-build-v2", "ci-build-v2"},
		{"1234", "1234"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeFamily(tt.input), "input %q", tt.input)
	}
}
