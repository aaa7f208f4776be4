package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/fyrsmithlabs/remedyd/internal/evaluate"
)

// WorkflowLogs returns a line-oriented summary of a workflow run: one line
// per failed job and step, suitable as diagnostic context when the job's own
// logs are unavailable.
func (c *Client) WorkflowLogs(ctx context.Context, owner, repo string, runID int64) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var jobs *github.Jobs
	_, err := retryOperation(ctx, c.retry, c.logger, func() (*github.Response, error) {
		var resp *github.Response
		var opErr error
		jobs, resp, opErr = c.gh.Actions.ListWorkflowJobs(ctx, owner, repo, runID, &github.ListWorkflowJobsOptions{
			Filter:      "latest",
			ListOptions: github.ListOptions{PerPage: 100},
		})
		return resp, opErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow jobs for run %d: %w", runID, err)
	}

	var lines []string
	for _, job := range jobs.Jobs {
		conclusion := job.GetConclusion()
		if conclusion == "" {
			conclusion = job.GetStatus()
		}
		lines = append(lines, fmt.Sprintf("job %q: %s", job.GetName(), conclusion))

		if conclusion != "failure" {
			continue
		}
		for _, step := range job.Steps {
			if step.GetConclusion() == "failure" {
				lines = append(lines, fmt.Sprintf("  step %d %q: failure", step.GetNumber(), step.GetName()))
			}
		}
	}
	return lines, nil
}

// PRState collects the pull request facts the success evaluator scores:
// approval, merge state, and status check totals.
func (c *Client) PRState(ctx context.Context, owner, repo string, number int) (*evaluate.PRState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var pr *github.PullRequest
	_, err := retryOperation(ctx, c.retry, c.logger, func() (*github.Response, error) {
		var resp *github.Response
		var opErr error
		pr, resp, opErr = c.gh.PullRequests.Get(ctx, owner, repo, number)
		return resp, opErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get PR #%d: %w", number, err)
	}

	state := &evaluate.PRState{Merged: pr.GetMerged()}

	var reviews []*github.PullRequestReview
	_, err = retryOperation(ctx, c.retry, c.logger, func() (*github.Response, error) {
		var resp *github.Response
		var opErr error
		reviews, resp, opErr = c.gh.PullRequests.ListReviews(ctx, owner, repo, number, &github.ListOptions{PerPage: 100})
		return resp, opErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for PR #%d: %w", number, err)
	}
	for _, review := range reviews {
		if strings.EqualFold(review.GetState(), "approved") {
			state.Approved = true
			break
		}
	}

	sha := pr.GetHead().GetSHA()
	if sha == "" {
		return state, nil
	}

	var checks *github.ListCheckRunsResults
	_, err = retryOperation(ctx, c.retry, c.logger, func() (*github.Response, error) {
		var resp *github.Response
		var opErr error
		checks, resp, opErr = c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, sha, &github.ListCheckRunsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		})
		return resp, opErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list check runs for PR #%d: %w", number, err)
	}

	state.ChecksTotal = checks.GetTotal()
	for _, run := range checks.CheckRuns {
		switch run.GetConclusion() {
		case "failure", "timed_out", "cancelled":
			state.ChecksFailed++
		}
	}
	return state, nil
}

// CommentOnPR posts a comment on a pull request.
func (c *Client) CommentOnPR(ctx context.Context, owner, repo string, number int, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := retryOperation(ctx, c.retry, c.logger, func() (*github.Response, error) {
		_, resp, opErr := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
			Body: github.String(body),
		})
		return resp, opErr
	})
	if err != nil {
		return fmt.Errorf("failed to comment on PR #%d: %w", number, err)
	}
	return nil
}
