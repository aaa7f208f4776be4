package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

func newFakeAPI(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := gh.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	return newClientForTest(client)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{}, nil)
	assert.Error(t, err)

	c, err := NewClient(context.Background(), ClientConfig{Token: config.Secret("ghp_x")}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestWorkflowLogs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/actions/runs/42/jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gh.Jobs{
			TotalCount: gh.Int(2),
			Jobs: []*gh.WorkflowJob{
				{
					Name:       gh.String("build"),
					Conclusion: gh.String("failure"),
					Steps: []*gh.TaskStep{
						{Number: gh.Int64(1), Name: gh.String("checkout"), Conclusion: gh.String("success")},
						{Number: gh.Int64(2), Name: gh.String("compile"), Conclusion: gh.String("failure")},
					},
				},
				{Name: gh.String("lint"), Conclusion: gh.String("success")},
			},
		})
	})

	c := newFakeAPI(t, mux)
	lines, err := c.WorkflowLogs(context.Background(), "acme", "widgets", 42)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`job "build": failure`,
		`  step 2 "compile": failure`,
		`job "lint": success`,
	}, lines)
}

func TestPRState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gh.PullRequest{
			Merged: gh.Bool(true),
			Head:   &gh.PullRequestBranch{SHA: gh.String("abc123")},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*gh.PullRequestReview{
			{State: gh.String("COMMENTED")},
			{State: gh.String("APPROVED")},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gh.ListCheckRunsResults{
			Total: gh.Int(3),
			CheckRuns: []*gh.CheckRun{
				{Conclusion: gh.String("success")},
				{Conclusion: gh.String("failure")},
				{Conclusion: gh.String("timed_out")},
			},
		})
	})

	c := newFakeAPI(t, mux)
	state, err := c.PRState(context.Background(), "acme", "widgets", 7)
	require.NoError(t, err)

	assert.True(t, state.Merged)
	assert.True(t, state.Approved)
	assert.Equal(t, 3, state.ChecksTotal)
	assert.Equal(t, 2, state.ChecksFailed)
}

func TestCommentOnPR(t *testing.T) {
	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var comment gh.IssueComment
		require.NoError(t, json.NewDecoder(r.Body).Decode(&comment))
		gotBody = comment.GetBody()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(gh.IssueComment{ID: gh.Int64(1)})
	})

	c := newFakeAPI(t, mux)
	require.NoError(t, c.CommentOnPR(context.Background(), "acme", "widgets", 7, "escalation report"))
	assert.Equal(t, "escalation report", gotBody)
}

func TestRetryOperation_RecoversFromTransientError(t *testing.T) {
	calls := 0
	cfg := &RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}

	_, err := retryOperation(context.Background(), cfg, nil, func() (*gh.Response, error) {
		calls++
		if calls < 3 {
			resp := &gh.Response{Response: &http.Response{StatusCode: http.StatusBadGateway}}
			return resp, fmt.Errorf("bad gateway")
		}
		return &gh.Response{Response: &http.Response{StatusCode: http.StatusOK}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOperation_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	cfg := &RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}

	_, err := retryOperation(context.Background(), cfg, nil, func() (*gh.Response, error) {
		calls++
		resp := &gh.Response{Response: &http.Response{StatusCode: http.StatusNotFound}}
		return resp, errors.New("not found")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOperation_ExhaustsRetries(t *testing.T) {
	calls := 0
	cfg := &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}

	_, err := retryOperation(context.Background(), cfg, nil, func() (*gh.Response, error) {
		calls++
		resp := &gh.Response{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}
		return resp, errors.New("unavailable")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestIsRetryableError(t *testing.T) {
	withStatus := func(code int) *gh.Response {
		return &gh.Response{Response: &http.Response{StatusCode: code}}
	}

	tests := []struct {
		name string
		err  error
		resp *gh.Response
		want bool
	}{
		{"nil error", nil, withStatus(500), false},
		{"rate limited", errors.New("x"), withStatus(429), true},
		{"server error", errors.New("x"), withStatus(500), true},
		{"gateway timeout", errors.New("x"), withStatus(504), true},
		{"unauthorized", errors.New("x"), withStatus(401), false},
		{"unprocessable", errors.New("x"), withStatus(422), false},
		{"forbidden without rate info", errors.New("x"), withStatus(403), false},
		{"network error without response", errors.New("dial timeout"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err, tt.resp))
		})
	}
}

func TestIsRetryableError_SecondaryRateLimit(t *testing.T) {
	resp := &gh.Response{Response: &http.Response{StatusCode: http.StatusForbidden}}
	resp.Rate = gh.Rate{Limit: 5000, Remaining: 0}
	assert.True(t, isRetryableError(errors.New("x"), resp))
	assert.True(t, isRateLimitError(resp))
}

func TestRateLimitBackoff(t *testing.T) {
	t.Run("no rate info defaults to a minute", func(t *testing.T) {
		assert.Equal(t, time.Minute, rateLimitBackoff(nil, time.Hour))
	})

	t.Run("respects reset time", func(t *testing.T) {
		resp := &gh.Response{}
		resp.Rate = gh.Rate{Limit: 5000, Reset: gh.Timestamp{Time: time.Now().Add(10 * time.Second)}}
		backoff := rateLimitBackoff(resp, time.Hour)
		assert.Greater(t, backoff, 9*time.Second)
		assert.Less(t, backoff, 12*time.Second)
	})

	t.Run("caps at max backoff", func(t *testing.T) {
		resp := &gh.Response{}
		resp.Rate = gh.Rate{Limit: 5000, Reset: gh.Timestamp{Time: time.Now().Add(time.Hour)}}
		assert.Equal(t, 30*time.Second, rateLimitBackoff(resp, 30*time.Second))
	})

	t.Run("past reset uses minimal backoff", func(t *testing.T) {
		resp := &gh.Response{}
		resp.Rate = gh.Rate{Limit: 5000, Reset: gh.Timestamp{Time: time.Now().Add(-time.Minute)}}
		assert.Equal(t, time.Second, rateLimitBackoff(resp, time.Hour))
	})
}
