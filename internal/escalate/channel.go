// Package escalate delivers hand-off notifications when automated
// remediation gives up. Delivery is best effort across independent channels:
// one channel failing never blocks another, and dispatching never fails the
// caller.
package escalate

import "context"

// Severity grades a notification.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// PRRef locates the pull request a notification relates to, when there is
// one. Channels that post to pull requests need it; others ignore it.
type PRRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// Notification is one escalation message.
type Notification struct {
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	PR       *PRRef   `json:"pr,omitempty"`
}

// Channel is a single delivery target.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Enabled reports whether the channel should receive notifications.
	// Disabled channels are skipped, not failed.
	Enabled() bool

	// Send delivers one notification.
	Send(ctx context.Context, n Notification) error
}
