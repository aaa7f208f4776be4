// Package signal defines the failure signals that enter the remediation
// pipeline: CI pipeline failures, platform health alerts, QA feedback.
package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity classifies how urgent a signal is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Signal is a normalized failure event.
//
// Type identifies the root-cause class (an alert type like "a7", or a
// workflow family like "ci-build"); Target identifies the affected resource
// (pod, job, task). Dedup keys on both.
type Signal struct {
	// Fingerprint is the stable dedup key. Derived from labels when the
	// source does not provide one.
	Fingerprint string `json:"fingerprint"`

	// Type is the root-cause class of the signal.
	Type string `json:"type"`

	// Target is the affected resource.
	Target string `json:"target"`

	Severity Severity          `json:"severity"`
	Labels   map[string]string `json:"labels,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the fields a signal must carry to be routable.
func (s *Signal) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("signal type is required")
	}
	if s.Target == "" {
		return fmt.Errorf("signal target is required")
	}
	switch s.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	case "":
		s.Severity = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", s.Severity)
	}
	return nil
}

// Normalize fills derived fields: fingerprint and timestamp.
func (s *Signal) Normalize(now time.Time) {
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}
	if s.Fingerprint == "" {
		s.Fingerprint = ComputeFingerprint(s.Type, s.Target, s.Labels)
	}
}

// ComputeFingerprint derives a stable identifier from a signal's defining
// labels. Label order does not affect the result.
func ComputeFingerprint(sigType, target string, labels map[string]string) string {
	parts := make([]string, 0, len(labels)+2)
	parts = append(parts, "type="+sigType, "target="+target)

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:8])
}

// Key returns the exact-dedup key {type, target}.
func (s *Signal) Key() string {
	return s.Type + ":" + s.Target
}
