package escalate

import (
	"fmt"
	"strings"
	"time"
)

// maxErrorExcerpt bounds the last-error section so channel backends with
// message size limits still accept the report.
const maxErrorExcerpt = 2000

// AttemptRow is one remediation attempt in the report's history table.
type AttemptRow struct {
	Number   int
	Agent    string
	Outcome  string
	Duration time.Duration
}

// Report is the structured content of an escalation. Render produces the
// human-readable message in a fixed section order: header, failure detail,
// attempt history, last error, call to action.
type Report struct {
	UnitKey  string
	Target   string
	Category string
	Summary  string
	Attempts []AttemptRow

	// LastError is the most recent failure output; Render truncates it to
	// maxErrorExcerpt characters.
	LastError string
}

// Render formats the report as markdown.
func (r Report) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Automated remediation exhausted for `%s`\n\n", r.UnitKey)
	if r.Target != "" {
		fmt.Fprintf(&b, "Target: `%s`\n", r.Target)
	}
	if r.Category != "" {
		fmt.Fprintf(&b, "Diagnosis: %s\n", r.Category)
	}
	b.WriteString("\n")

	if r.Summary != "" {
		b.WriteString("### What failed\n\n")
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}

	if len(r.Attempts) > 0 {
		b.WriteString("### Attempts\n\n")
		b.WriteString("| # | Agent | Outcome | Duration |\n")
		b.WriteString("|---|-------|---------|----------|\n")
		for _, a := range r.Attempts {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
				a.Number, a.Agent, a.Outcome, a.Duration.Round(time.Second))
		}
		b.WriteString("\n")
	}

	if r.LastError != "" {
		b.WriteString("### Last error\n\n```\n")
		b.WriteString(truncate(r.LastError, maxErrorExcerpt))
		b.WriteString("\n```\n\n")
	}

	b.WriteString("Manual intervention is required. ")
	b.WriteString("Review the attempts above, fix the underlying cause, and resolve the alert.\n")

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}
