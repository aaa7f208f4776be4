// Package diagnose classifies failure context into a root-cause category.
//
// Classification is an ordered first-match-wins scan of keyword rules over
// the gathered logs and agent output. It is deliberately conservative:
// anything the rules do not recognize is Unknown, and diagnosis never makes
// an external call and never fails.
package diagnose

import (
	"strings"
)

// Category is a root-cause class.
type Category string

const (
	GitIssue   Category = "git"
	InfraIssue Category = "infra"
	CodeIssue  Category = "code"
	Unknown    Category = "unknown"
)

// Context is the input to diagnosis.
type Context struct {
	// Logs are recent log lines from the failed job or its workflow.
	Logs []string

	// AgentOutput is the final output of the agent that ran the work, when
	// one was involved.
	AgentOutput string
}

// Diagnosis is the result of classification.
type Diagnosis struct {
	Category      Category `json:"category"`
	Summary       string   `json:"summary"`
	SuggestedFix  string   `json:"suggested_fix"`
	RelevantFiles []string `json:"relevant_files,omitempty"`
}

// Rule maps keyword matches to a diagnosis. The first keyword found anywhere
// in the context (case-insensitive) selects the rule.
type Rule struct {
	Name         string
	Keywords     []string
	Category     Category
	Summary      string
	SuggestedFix string
}

// Engine runs an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine over the given rules, scanned in order. With
// no rules the engine always reports Unknown.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// NewDefaultEngine returns an engine with the built-in rule set.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultRules())
}

// Diagnose classifies the context. It always returns a Diagnosis; with no
// matching rule the category is Unknown.
func (e *Engine) Diagnose(dctx Context) Diagnosis {
	haystack := strings.ToLower(strings.Join(dctx.Logs, "\n") + "\n" + dctx.AgentOutput)

	for _, rule := range e.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return Diagnosis{
					Category:      rule.Category,
					Summary:       rule.Summary,
					SuggestedFix:  rule.SuggestedFix,
					RelevantFiles: extractFiles(dctx.Logs),
				}
			}
		}
	}

	return Diagnosis{
		Category:     Unknown,
		Summary:      "failure cause not recognized by any rule",
		SuggestedFix: "inspect the job logs manually",
	}
}

// DefaultRules is the built-in ordered rule list. More specific patterns
// come first so generic keywords cannot shadow them.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:         "merge-conflict",
			Keywords:     []string{"merge conflict", "conflict in", "automatic merge failed"},
			Category:     GitIssue,
			Summary:      "merge conflict while integrating the change",
			SuggestedFix: "rebase the branch onto the target and resolve conflicts",
		},
		{
			Name:         "non-fast-forward",
			Keywords:     []string{"non-fast-forward", "fetch first", "rejected because the remote contains work"},
			Category:     GitIssue,
			Summary:      "push rejected, remote moved ahead of the local branch",
			SuggestedFix: "fetch and rebase before pushing",
		},
		{
			Name:         "detached-head",
			Keywords:     []string{"detached head", "not currently on any branch"},
			Category:     GitIssue,
			Summary:      "working tree is on a detached HEAD",
			SuggestedFix: "check out the task branch before committing",
		},
		{
			Name:         "auth-git",
			Keywords:     []string{"authentication failed", "permission denied (publickey)", "could not read from remote repository"},
			Category:     GitIssue,
			Summary:      "git remote rejected the credentials",
			SuggestedFix: "verify the repository token and its scopes",
		},
		{
			Name:         "image-pull",
			Keywords:     []string{"imagepullbackoff", "errimagepull", "failed to pull image"},
			Category:     InfraIssue,
			Summary:      "container image could not be pulled",
			SuggestedFix: "check the image reference and registry credentials",
		},
		{
			Name:         "oom",
			Keywords:     []string{"oomkilled", "out of memory", "cannot allocate memory"},
			Category:     InfraIssue,
			Summary:      "job was killed for exceeding its memory limit",
			SuggestedFix: "raise the memory limit or reduce the working set",
		},
		{
			Name:         "disk-pressure",
			Keywords:     []string{"no space left on device", "disk pressure", "evicted"},
			Category:     InfraIssue,
			Summary:      "node ran out of disk",
			SuggestedFix: "clean up workspace volumes or schedule on a larger node",
		},
		{
			Name:         "dns",
			Keywords:     []string{"no such host", "name resolution", "temporary failure in name resolution"},
			Category:     InfraIssue,
			Summary:      "DNS lookup failed inside the job",
			SuggestedFix: "check cluster DNS and the hostname in the job spec",
		},
		{
			Name:         "connectivity",
			Keywords:     []string{"connection refused", "connection reset by peer", "i/o timeout", "tls handshake timeout"},
			Category:     InfraIssue,
			Summary:      "a dependency was unreachable",
			SuggestedFix: "retry once the dependency is healthy; check network policy",
		},
		{
			Name:         "compile",
			Keywords:     []string{"compilation failed", "compile error", "syntax error", "cannot find symbol", "undefined reference", "undefined:"},
			Category:     CodeIssue,
			Summary:      "the change does not compile",
			SuggestedFix: "fix the build errors reported in the log",
		},
		{
			Name:         "test-failure",
			Keywords:     []string{"test failed", "tests failed", "assertion failed", "--- fail"},
			Category:     CodeIssue,
			Summary:      "one or more tests failed",
			SuggestedFix: "fix the failing tests named in the log",
		},
		{
			Name:         "panic",
			Keywords:     []string{"panic:", "segmentation fault", "stack overflow", "nullpointerexception"},
			Category:     CodeIssue,
			Summary:      "the program crashed at runtime",
			SuggestedFix: "fix the crash at the reported stack trace",
		},
		{
			Name:         "lint",
			Keywords:     []string{"lint error", "golangci-lint", "eslint", "clippy"},
			Category:     CodeIssue,
			Summary:      "static analysis rejected the change",
			SuggestedFix: "apply the linter's suggested fixes",
		},
	}
}

// extractFiles pulls file paths mentioned in log lines. Best effort: a token
// counts as a path when it contains a slash and a dot-extension.
func extractFiles(logs []string) []string {
	seen := make(map[string]bool)
	var files []string

	for _, line := range logs {
		for _, tok := range strings.Fields(line) {
			tok = strings.Trim(tok, `"'():,`)
			// Strip :line:col suffixes compilers append
			if i := strings.IndexByte(tok, ':'); i > 0 {
				tok = tok[:i]
			}
			if !strings.Contains(tok, "/") {
				continue
			}
			dot := strings.LastIndexByte(tok, '.')
			if dot <= 0 || dot == len(tok)-1 {
				continue
			}
			if strings.ContainsAny(tok, "=@") || strings.HasPrefix(tok, "http") {
				continue
			}
			if !seen[tok] {
				seen[tok] = true
				files = append(files, tok)
			}
		}
	}

	const maxFiles = 10
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}
	return files
}
