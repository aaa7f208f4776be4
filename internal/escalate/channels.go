package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

// PRCommenter posts comments on pull requests. *github.Client satisfies it.
type PRCommenter interface {
	CommentOnPR(ctx context.Context, owner, repo string, number int, body string) error
}

// GitHubChannel escalates by commenting on the pull request the failing
// unit belongs to.
type GitHubChannel struct {
	commenter PRCommenter
	enabled   bool
}

// NewGitHubChannel creates a PR-comment escalation channel.
func NewGitHubChannel(commenter PRCommenter, enabled bool) *GitHubChannel {
	return &GitHubChannel{commenter: commenter, enabled: enabled}
}

func (c *GitHubChannel) Name() string { return "github" }

func (c *GitHubChannel) Enabled() bool { return c.enabled && c.commenter != nil }

func (c *GitHubChannel) Send(ctx context.Context, n Notification) error {
	if n.PR == nil {
		return fmt.Errorf("notification has no pull request reference")
	}
	return c.commenter.CommentOnPR(ctx, n.PR.Owner, n.PR.Repo, n.PR.Number, n.Body)
}

// WebhookChannel escalates by POSTing the notification as JSON to an HTTP
// endpoint.
type WebhookChannel struct {
	url     string
	token   config.Secret
	enabled bool
	http    *http.Client
}

// NewWebhookChannel creates a webhook escalation channel.
func NewWebhookChannel(url string, token config.Secret, timeout time.Duration, enabled bool) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		url:     url,
		token:   token,
		enabled: enabled,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Enabled() bool { return c.enabled && c.url != "" }

func (c *WebhookChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.token.Value())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Publisher publishes a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSChannel escalates by publishing the notification on a NATS subject so
// downstream consumers can route it.
type NATSChannel struct {
	pub     Publisher
	subject string
	enabled bool
}

// NewNATSChannel creates a NATS escalation channel.
func NewNATSChannel(pub Publisher, subject string, enabled bool) *NATSChannel {
	return &NATSChannel{pub: pub, subject: subject, enabled: enabled}
}

func (c *NATSChannel) Name() string { return "nats" }

func (c *NATSChannel) Enabled() bool { return c.enabled && c.pub != nil && c.subject != "" }

func (c *NATSChannel) Send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := c.pub.Publish(c.subject, data); err != nil {
		return fmt.Errorf("failed to publish escalation: %w", err)
	}
	return nil
}
