package evaluate

import (
	"context"
	"fmt"
)

// funcCheck adapts a closure into a Check.
type funcCheck struct {
	name   string
	weight float64
	run    func(ctx context.Context, st *State) (bool, string, error)
}

func (c *funcCheck) Name() string    { return c.name }
func (c *funcCheck) Weight() float64 { return c.weight }
func (c *funcCheck) Run(ctx context.Context, st *State) (bool, string, error) {
	return c.run(ctx, st)
}

// NewCheck wraps a closure as a Check.
func NewCheck(name string, weight float64, run func(ctx context.Context, st *State) (bool, string, error)) Check {
	return &funcCheck{name: name, weight: weight, run: run}
}

// defaultChecks builds the standard five criteria.
func defaultChecks(cfg Config) []Check {
	return []Check{
		NewCheck(CriterionFeedback, cfg.FeedbackWeight, checkFeedback),
		NewCheck(CriterionApproval, cfg.ApprovalWeight, checkApproval),
		NewCheck(CriterionStatusChecks, cfg.StatusChecksWeight, checkStatusChecks),
		NewCheck(CriterionNoCritical, cfg.NoCriticalWeight, checkNoCritical),
		NewCheck(CriterionManual, cfg.ManualWeight, checkManual),
	}
}

func checkFeedback(ctx context.Context, st *State) (bool, string, error) {
	if st.FeedbackResolved == nil {
		return false, "", fmt.Errorf("feedback state not gathered")
	}
	if *st.FeedbackResolved {
		return true, "originating feedback is resolved", nil
	}
	return false, "originating feedback is still open", nil
}

func checkApproval(ctx context.Context, st *State) (bool, string, error) {
	if st.PR == nil {
		return false, "", fmt.Errorf("pull request state not gathered")
	}
	if st.PR.Approved {
		return true, "pull request is approved", nil
	}
	return false, "pull request has no approval", nil
}

func checkStatusChecks(ctx context.Context, st *State) (bool, string, error) {
	if st.PR == nil {
		return false, "", fmt.Errorf("pull request state not gathered")
	}
	if st.PR.ChecksTotal == 0 {
		return false, "no status checks reported yet", nil
	}
	if st.PR.ChecksFailed > 0 {
		return false, fmt.Sprintf("%d of %d status checks failing", st.PR.ChecksFailed, st.PR.ChecksTotal), nil
	}
	return true, fmt.Sprintf("all %d status checks passing", st.PR.ChecksTotal), nil
}

func checkNoCritical(ctx context.Context, st *State) (bool, string, error) {
	if !st.IssuesKnown {
		return false, "", fmt.Errorf("issue state not gathered")
	}
	if len(st.CriticalIssues) > 0 {
		return false, fmt.Sprintf("%d unresolved critical issues", len(st.CriticalIssues)), nil
	}
	return true, "no unresolved critical issues", nil
}

func checkManual(ctx context.Context, st *State) (bool, string, error) {
	if st.ManualSignal == nil {
		return false, "no manual verdict recorded", nil
	}
	if *st.ManualSignal {
		return true, "operator marked the attempt successful", nil
	}
	return false, "operator marked the attempt failed", nil
}
