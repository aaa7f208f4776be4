// Package dedup suppresses redundant failure signals before they spawn
// remediation work or page a human.
//
// Two independent checks compose:
//
//  1. exact-key dedup: an open remediation unit for the same {type, target}
//     means the signal is already being worked on, so no new spawn;
//  2. type-window dedup: any open alert sharing the type within a trailing
//     window means one root cause is hitting many targets, so no new alert.
//
// Every lookup fails open: a store error is treated as "not found" so
// remediation is never blocked by dedup-store unavailability.
package dedup

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/metrics"
	"github.com/fyrsmithlabs/remedyd/internal/signal"
	"github.com/fyrsmithlabs/remedyd/internal/store"
)

// DefaultWindow is the trailing window for type-level alert dedup.
const DefaultWindow = 30 * time.Minute

// Alert record fields.
const (
	fieldType      = "type"
	fieldTarget    = "target"
	fieldCreatedAt = "created-at"
)

// UnitChecker reports whether an open (non-terminal) remediation unit exists
// for a dedup key. Implemented by the remediation service.
type UnitChecker interface {
	HasOpenUnit(ctx context.Context, key string) (bool, error)
}

// Decision is the outcome of a dedup check. The two suppressions are
// independent: a signal may be allowed to spawn but not to alert.
type Decision struct {
	SuppressSpawn bool
	SuppressAlert bool
	Reason        string
}

// Filter is the deduplication filter.
type Filter struct {
	units  UnitChecker
	store  store.Store
	cache  *Cache
	window time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// NewFilter creates a filter. A non-positive window falls back to
// DefaultWindow; a nil cache disables caching; a nil logger discards logs.
func NewFilter(units UnitChecker, st store.Store, cache *Cache, window time.Duration, logger *logging.Logger) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	if cache == nil {
		cache = NewCache(0)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Filter{
		units:  units,
		store:  st,
		cache:  cache,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// ShouldSuppress runs both dedup checks for a signal. It never returns an
// error: failed lookups count as "not found" and are logged.
func (f *Filter) ShouldSuppress(ctx context.Context, sig *signal.Signal) Decision {
	var d Decision
	now := f.now()

	// Exact-key: an open unit for {type, target} already covers this signal
	open, err := f.units.HasOpenUnit(ctx, sig.Key())
	if err != nil {
		metrics.DedupStoreFailures.Inc()
		f.logger.Warn(ctx, "unit lookup failed, treating as not found",
			zap.String("key", sig.Key()),
			zap.Error(err))
	} else if open {
		d.SuppressSpawn = true
		d.Reason = "open remediation unit for " + sig.Key()
		metrics.SuppressedTotal.WithLabelValues("exact_key").Inc()
	}

	// Type-window: any open alert of this type inside the trailing window
	family := TypeFamily(sig.Type)
	if alertedAt, ok := f.cache.Get(family, now); ok && now.Sub(alertedAt) <= f.window {
		d.SuppressAlert = true
		if d.Reason == "" {
			d.Reason = "open alert for type " + family + " within window"
		}
		metrics.SuppressedTotal.WithLabelValues("type_window").Inc()
		return d
	}

	alerts, err := f.store.List(ctx, store.AlertTypePrefix(family))
	if err != nil {
		metrics.DedupStoreFailures.Inc()
		f.logger.Warn(ctx, "alert lookup failed, treating as not found",
			zap.String("type", family),
			zap.Error(err))
		return d
	}

	for _, rec := range alerts {
		createdAt, err := time.Parse(time.RFC3339, rec[fieldCreatedAt])
		if err != nil {
			continue
		}
		if now.Sub(createdAt) <= f.window {
			d.SuppressAlert = true
			if d.Reason == "" {
				d.Reason = "open alert for type " + family + " within window"
			}
			metrics.SuppressedTotal.WithLabelValues("type_window").Inc()
			f.cache.Set(family, createdAt, now)
			break
		}
	}

	return d
}

// RecordAlert persists an open alert for the signal so later signals of the
// same type are suppressed for the window.
func (f *Filter) RecordAlert(ctx context.Context, sig *signal.Signal) error {
	now := f.now()
	family := TypeFamily(sig.Type)

	rec := store.Record{
		fieldType:      sig.Type,
		fieldTarget:    sig.Target,
		fieldCreatedAt: now.UTC().Format(time.RFC3339),
	}
	if err := f.store.Put(ctx, store.AlertKey(family, sig.Fingerprint), rec); err != nil {
		return err
	}

	f.cache.Set(family, now, now)
	return nil
}

// ResolveAlert drops the persisted alert for a signal, reopening the type
// for future alerts.
func (f *Filter) ResolveAlert(ctx context.Context, sig *signal.Signal) error {
	family := TypeFamily(sig.Type)
	if err := f.store.Delete(ctx, store.AlertKey(family, sig.Fingerprint)); err != nil {
		return err
	}
	f.cache.Forget(family)
	return nil
}

// TypeFamily reduces a signal type to its family so run-scoped suffixes do
// not defeat the window check: "ci-build-1234" and "ci-build-1235" share one
// root cause. Trailing segments of digits or hex run IDs are stripped.
func TypeFamily(sigType string) string {
	segs := strings.Split(sigType, "-")
	for len(segs) > 1 {
		last := segs[len(segs)-1]
		if !isRunSuffix(last) {
			break
		}
		segs = segs[:len(segs)-1]
	}
	return strings.Join(segs, "-")
}

// isRunSuffix reports whether a segment looks like a run ID: all digits, or
// 8+ chars of hex.
func isRunSuffix(seg string) bool {
	if seg == "" {
		return false
	}
	digits := true
	hex := len(seg) >= 8
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c < '0' || c > '9' {
			digits = false
		}
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			hex = false
		}
	}
	return digits || hex
}
