// Package evaluate scores the outcome of a remediation attempt with a
// weighted multi-check confidence model.
//
// Checks run against state already gathered by the orchestrator; evaluation
// itself is synchronous and side-effect-free. A check whose input was
// unreachable reports passed=false with the reason and still counts in the
// confidence denominator, so missing evidence always lowers confidence
// instead of being ignored.
package evaluate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/logging"
)

// DefaultThreshold is the confidence a verdict needs to count as success.
const DefaultThreshold = 0.8

// Criterion names.
const (
	CriterionFeedback     = "feedback-resolution"
	CriterionApproval     = "external-approval"
	CriterionStatusChecks = "external-status-checks"
	CriterionNoCritical   = "no-critical-issues"
	CriterionManual       = "manual-override"
)

// Config holds the evaluator's weights and threshold. All weights come from
// configuration; there are no embedded scoring constants.
type Config struct {
	FeedbackWeight     float64
	ApprovalWeight     float64
	StatusChecksWeight float64
	NoCriticalWeight   float64
	ManualWeight       float64
	Threshold          float64
}

// DefaultConfig returns the stock weights: human-facing evidence (feedback,
// approval, critical issues) weighs full, automated status checks slightly
// lower, manual signals lowest.
func DefaultConfig() Config {
	return Config{
		FeedbackWeight:     1.0,
		ApprovalWeight:     1.0,
		StatusChecksWeight: 0.8,
		NoCriticalWeight:   1.0,
		ManualWeight:       0.5,
		Threshold:          DefaultThreshold,
	}
}

// Validate rejects configs that would make scoring meaningless.
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		CriterionFeedback:     c.FeedbackWeight,
		CriterionApproval:     c.ApprovalWeight,
		CriterionStatusChecks: c.StatusChecksWeight,
		CriterionNoCritical:   c.NoCriticalWeight,
		CriterionManual:       c.ManualWeight,
	} {
		if w < 0 {
			return fmt.Errorf("weight for %s cannot be negative: %v", name, w)
		}
	}
	if c.FeedbackWeight+c.ApprovalWeight+c.StatusChecksWeight+c.NoCriticalWeight+c.ManualWeight <= 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", c.Threshold)
	}
	return nil
}

// PRState is the review/merge/check state of the pull request a unit is
// fixing, as observed during context gathering.
type PRState struct {
	Approved     bool
	Merged       bool
	ChecksTotal  int
	ChecksFailed int
}

// State is the evidence an attempt's outcome is judged on. Nil pointers mean
// the source was unreachable when the state was gathered.
type State struct {
	// FeedbackResolved is whether the originating feedback (QA comment,
	// review thread) is resolved. Nil when the feedback source was
	// unreachable.
	FeedbackResolved *bool

	// PR is the pull request state. Nil when unreachable or no PR exists.
	PR *PRState

	// CriticalIssues lists unresolved critical findings. Meaningful only
	// when IssuesKnown is true.
	IssuesKnown    bool
	CriticalIssues []string

	// ManualSignal is an operator's explicit verdict, when one was given.
	ManualSignal *bool
}

// CriterionResult is one check's contribution to an assessment.
type CriterionResult struct {
	Criterion string  `json:"criterion"`
	Passed    bool    `json:"passed"`
	Weight    float64 `json:"weight"`
	Details   string  `json:"details"`
}

// Assessment is the scored outcome of an attempt.
type Assessment struct {
	UnitID     string            `json:"unit_id"`
	Criteria   []CriterionResult `json:"criteria"`
	Confidence float64           `json:"confidence"`
	Success    bool              `json:"success"`
}

// Check is one independent success criterion. Run returns an error when its
// input is unreachable; the evaluator converts that into passed=false with
// the error as detail.
type Check interface {
	Name() string
	Weight() float64
	Run(ctx context.Context, st *State) (bool, string, error)
}

// Evaluator scores attempts against a fixed, extensible check list.
type Evaluator struct {
	checks    []Check
	threshold float64
	logger    *logging.Logger
}

// NewEvaluator builds an evaluator with the standard five checks weighted
// per cfg. Invalid config is a setup error.
func NewEvaluator(cfg Config, logger *logging.Logger) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	return NewEvaluatorWithChecks(defaultChecks(cfg), cfg.Threshold, logger)
}

// NewEvaluatorWithChecks builds an evaluator over a caller-supplied check
// list, the extension point for custom criteria.
func NewEvaluatorWithChecks(checks []Check, threshold float64, logger *logging.Logger) (*Evaluator, error) {
	if len(checks) == 0 {
		return nil, fmt.Errorf("at least one check is required")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Evaluator{checks: checks, threshold: threshold, logger: logger}, nil
}

// Evaluate scores the state. It never fails: check errors become failed
// criteria with the error as detail, and confidence stays in [0, 1].
func (e *Evaluator) Evaluate(ctx context.Context, unitID string, st *State) Assessment {
	if st == nil {
		st = &State{}
	}

	results := make([]CriterionResult, 0, len(e.checks))
	var weightSum, passedSum float64

	for _, check := range e.checks {
		passed, details, err := check.Run(ctx, st)
		if err != nil {
			passed = false
			details = "check unavailable: " + err.Error()
		}

		w := check.Weight()
		weightSum += w
		if passed {
			passedSum += w
		}

		results = append(results, CriterionResult{
			Criterion: check.Name(),
			Passed:    passed,
			Weight:    w,
			Details:   details,
		})
	}

	confidence := 0.0
	if weightSum > 0 {
		confidence = passedSum / weightSum
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	assessment := Assessment{
		UnitID:     unitID,
		Criteria:   results,
		Confidence: confidence,
		Success:    confidence >= e.threshold,
	}

	e.logger.Debug(ctx, "attempt evaluated",
		zap.String("unit_id", unitID),
		zap.Float64("confidence", confidence),
		zap.Bool("success", assessment.Success))

	return assessment
}
