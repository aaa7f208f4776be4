// Package github wraps the GitHub API surface remedyd needs: workflow run
// context for diagnosis, pull request state for success evaluation, and PR
// comments for escalation. All calls go through a shared rate limiter and
// retry with exponential backoff.
package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/remedyd/internal/config"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
)

// ClientConfig holds GitHub client configuration.
type ClientConfig struct {
	Token config.Secret

	// RPS and Burst bound the request rate against the API.
	RPS   float64
	Burst int

	Retry *RetryConfig
}

// Client is an authenticated, rate-limited GitHub API client.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	retry   *RetryConfig
	logger  *logging.Logger
}

// NewClient creates a GitHub client with token authentication.
func NewClient(ctx context.Context, cfg ClientConfig, logger *logging.Logger) (*Client, error) {
	if !cfg.Token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = DefaultRetryConfig()
	}
	retryCfg.ApplyDefaults()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()})
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:      github.NewClient(tc),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		retry:   retryCfg,
		logger:  logger,
	}, nil
}

// newClientForTest builds a Client on top of a preconfigured go-github
// client, bypassing authentication.
func newClientForTest(gh *github.Client) *Client {
	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry:   &RetryConfig{MaxRetries: 1, InitialBackoff: 1, MaxBackoff: 1, BackoffMultiplier: 1},
		logger:  logging.NewNop(),
	}
}
