package diagnose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnose_Categories(t *testing.T) {
	engine := NewDefaultEngine()

	tests := []struct {
		name string
		dctx Context
		want Category
	}{
		{
			name: "merge conflict",
			dctx: Context{Logs: []string{"CONFLICT (content): Merge conflict in pkg/api/handler.go"}},
			want: GitIssue,
		},
		{
			name: "non fast forward",
			dctx: Context{Logs: []string{"! [rejected] main -> main (non-fast-forward)"}},
			want: GitIssue,
		},
		{
			name: "image pull",
			dctx: Context{Logs: []string{"Warning  Failed  kubelet  Error: ErrImagePull"}},
			want: InfraIssue,
		},
		{
			name: "oom kill",
			dctx: Context{Logs: []string{"Last State: Terminated", "Reason: OOMKilled"}},
			want: InfraIssue,
		},
		{
			name: "dns",
			dctx: Context{Logs: []string{`dial tcp: lookup registry.internal: no such host`}},
			want: InfraIssue,
		},
		{
			name: "compile error",
			dctx: Context{Logs: []string{"./main.go:42:7: undefined: frobnicate"}},
			want: CodeIssue,
		},
		{
			name: "go test failure",
			dctx: Context{Logs: []string{"--- FAIL: TestHandler (0.02s)"}},
			want: CodeIssue,
		},
		{
			name: "panic in agent output",
			dctx: Context{AgentOutput: "the run ended with panic: runtime error: index out of range"},
			want: CodeIssue,
		},
		{
			name: "nothing recognized",
			dctx: Context{Logs: []string{"job exited with status 1"}},
			want: Unknown,
		},
		{
			name: "empty context",
			dctx: Context{},
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Diagnose(tt.dctx)
			assert.Equal(t, tt.want, d.Category)
			assert.NotEmpty(t, d.Summary)
			assert.NotEmpty(t, d.SuggestedFix)
		})
	}
}

func TestDiagnose_FirstMatchWins(t *testing.T) {
	engine := NewEngine([]Rule{
		{Name: "specific", Keywords: []string{"merge conflict"}, Category: GitIssue, Summary: "specific", SuggestedFix: "s"},
		{Name: "generic", Keywords: []string{"conflict"}, Category: CodeIssue, Summary: "generic", SuggestedFix: "g"},
	})

	d := engine.Diagnose(Context{Logs: []string{"Automatic merge failed; Merge conflict detected"}})
	assert.Equal(t, GitIssue, d.Category)
	assert.Equal(t, "specific", d.Summary)
}

func TestDiagnose_CaseInsensitive(t *testing.T) {
	engine := NewDefaultEngine()

	d := engine.Diagnose(Context{Logs: []string{"MERGE CONFLICT in src/lib.rs"}})
	assert.Equal(t, GitIssue, d.Category)
}

func TestDiagnose_RelevantFiles(t *testing.T) {
	engine := NewDefaultEngine()

	d := engine.Diagnose(Context{Logs: []string{
		"CONFLICT (content): Merge conflict in pkg/api/handler.go",
		"CONFLICT (content): Merge conflict in pkg/api/handler.go",
		"./internal/store/memory.go:17:2: syntax error",
	}})

	require.Equal(t, GitIssue, d.Category)
	assert.Contains(t, d.RelevantFiles, "pkg/api/handler.go")
	assert.Contains(t, d.RelevantFiles, "./internal/store/memory.go")
	// Duplicates collapse
	assert.Len(t, d.RelevantFiles, 2)
}

func TestDiagnose_NoRules(t *testing.T) {
	engine := NewEngine(nil)

	d := engine.Diagnose(Context{Logs: []string{"panic: boom"}})
	assert.Equal(t, Unknown, d.Category)
}
