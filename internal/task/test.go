package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latchhq/latch/internal/hook"
	"github.com/tidwall/gjson"
)

// TestConfig configures the test task.
type TestConfig struct {
	// Tool is the test driver. Defaults to go.
	Tool string
	// Args is the test argument vector. Defaults to "test -json ./...".
	Args []string
	// Required fails the task when the tool is missing instead of skipping.
	Required bool
}

// TestTask runs the test suite and turns failed tests into diagnostics. The
// driver is expected to emit go-test-style JSON events on stdout; anything
// else degrades to a single pass/fail diagnostic from the exit code.
type TestTask struct {
	Meta
	tool
	toolName string
	args     []string
}

// NewTestTask builds the test task from configuration.
func NewTestTask(cfg TestConfig, resolver ExecutableResolver, proc ProcessRunner) *TestTask {
	name := cfg.Tool
	if name == "" {
		name = "go"
	}
	args := cfg.Args
	if len(args) == 0 {
		args = []string{"test", "-json", "./..."}
	}
	return &TestTask{
		Meta: Meta{
			TaskID:     "test",
			TaskName:   "Tests",
			HookTypes:  []hook.Type{hook.PrePush, hook.CI},
			IsBlocking: true,
			Safety:     FixSafe,
			Required:   cfg.Required,
		},
		tool:     tool{Resolver: resolver, Proc: proc},
		toolName: name,
		args:     args,
	}
}

func (t *TestTask) Run(ctx context.Context, hctx *hook.Context) Result {
	start := time.Now()

	res, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, t.args, t.Required, start)
	if early != nil {
		return *early
	}

	diags := parseTestEvents(res.Output)
	if res.ExitCode != 0 && len(diags) == 0 {
		diags = []Diagnostic{{Severity: SeverityError, Message: fmt.Sprintf("test run exited with status %d", res.ExitCode)}}
	}
	return Finalize(diags, t.IsBlocking, len(hctx.ScopedFiles()), time.Since(start))
}

func (t *TestTask) Fix(context.Context, *hook.Context) FixResult {
	return FixResult{Errors: []string{"test task has no fix mode"}}
}

// parseTestEvents extracts failed tests from a go-test JSON event stream. One
// diagnostic per failed test, in stream order; non-JSON lines are ignored.
func parseTestEvents(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		ev := gjson.Parse(line)
		if ev.Get("Action").String() != "fail" {
			continue
		}
		pkg := ev.Get("Package").String()
		test := ev.Get("Test").String()
		if test == "" {
			// Package-level fail events duplicate the per-test ones.
			continue
		}
		diags = append(diags, Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("test %s failed in %s", test, pkg),
			Rule:     test,
		})
	}
	return diags
}
