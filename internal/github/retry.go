package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/logging"
)

// RetryConfig configures retry behavior for GitHub API calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the initial backoff duration.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration for GitHub API calls.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()

	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

// retryOperation retries a GitHub API operation with exponential backoff.
// It handles rate limiting and transient errors automatically.
func retryOperation(ctx context.Context, cfg *RetryConfig, log *logging.Logger, operation func() (*github.Response, error)) (*github.Response, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = logging.NewNop()
	}

	var lastErr error
	var lastResp *github.Response
	backoff := cfg.InitialBackoff
	startTime := time.Now()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := operation()
		if err == nil {
			if attempt > 0 {
				log.Debug(ctx, "GitHub API operation recovered after retries",
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(startTime)),
				)
			}
			return resp, nil
		}

		lastErr = err
		lastResp = resp

		if !isRetryableError(err, resp) {
			return resp, err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		if isRateLimitError(resp) {
			backoff = rateLimitBackoff(resp, cfg.MaxBackoff)
			log.Info(ctx, "GitHub API rate limit hit, adjusting backoff",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Duration("backoff", backoff),
			)
		} else {
			log.Debug(ctx, "retrying GitHub API operation after transient error",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Error(err),
				zap.Int("status_code", statusCode(resp)),
				zap.Duration("backoff", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			next := time.Duration(float64(backoff) * cfg.BackoffMultiplier)
			if next > cfg.MaxBackoff {
				next = cfg.MaxBackoff
			}
			backoff = next
		}
	}

	log.Warn(ctx, "GitHub API operation failed after all retries exhausted",
		zap.Int("total_attempts", cfg.MaxRetries+1),
		zap.Duration("total_time", time.Since(startTime)),
		zap.Error(lastErr),
		zap.Int("status_code", statusCode(lastResp)),
	)

	return lastResp, fmt.Errorf("GitHub API operation failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// isRetryableError checks if a GitHub API error is retryable.
func isRetryableError(err error, resp *github.Response) bool {
	if err == nil {
		return false
	}

	if resp != nil && resp.Response != nil {
		code := resp.Response.StatusCode

		switch code {
		case http.StatusTooManyRequests:
			return true
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusUnprocessableEntity:
			return false
		case http.StatusForbidden:
			// Forbidden can be a secondary rate limit; rate headers present
			// means we got rate info back.
			return resp.Rate.Limit > 0
		default:
			return code >= 500 && code < 600
		}
	}

	// No status code available: network errors and timeouts are typically
	// retryable.
	return true
}

// isRateLimitError checks if the response indicates a rate limit error.
func isRateLimitError(resp *github.Response) bool {
	if resp == nil || resp.Response == nil {
		return false
	}
	if resp.Response.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.Response.StatusCode == http.StatusForbidden && resp.Rate.Limit > 0
}

// rateLimitBackoff calculates the backoff duration for rate limit errors,
// respecting the API's rate limit reset time if available.
func rateLimitBackoff(resp *github.Response, maxBackoff time.Duration) time.Duration {
	if resp == nil || (resp.Rate.Limit == 0 && resp.Rate.Remaining == 0) {
		return time.Minute
	}

	backoff := time.Until(resp.Rate.Reset.Time)
	// Small buffer to ensure the reset has happened
	backoff += time.Second

	if backoff < 0 {
		backoff = time.Second
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// statusCode safely extracts the HTTP status code from a GitHub response.
func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}
