package runner

import (
	"bytes"
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/latchhq/latch/internal/config"
	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/internal/stage"
	"github.com/latchhq/latch/internal/task"
	"github.com/latchhq/latch/pkg/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTask is a canned-result HookTask for composition tests.
type stubTask struct {
	task.Meta
	result task.Result
	fix    task.FixResult
}

func (s *stubTask) Run(context.Context, *hook.Context) task.Result    { return s.result }
func (s *stubTask) Fix(context.Context, *hook.Context) task.FixResult { return s.fix }

func stub(id string, hooks []hook.Type, blocking, fixable bool, res task.Result) *stubTask {
	return &stubTask{
		Meta: task.Meta{
			TaskID:     id,
			TaskName:   id,
			HookTypes:  hooks,
			IsBlocking: blocking,
			Fixable:    fixable,
		},
		result: res,
	}
}

func passResult() task.Result { return task.Result{Status: task.StatusPassed} }

func failResult() task.Result {
	return task.Result{
		Status: task.StatusFailed,
		Diagnostics: []task.Diagnostic{{
			File: "Sources/Foo.swift", Line: 10, Column: 5,
			Severity: task.SeverityError, Message: "missing trailing comma",
		}},
	}
}

func testContext(ht hook.Type) *hook.Context {
	return &hook.Context{ProjectRoot: "/tmp/project", Hook: ht, Scope: hook.ScopeAll, Branch: "main", SHA: "0123456789abcdef"}
}

func registryWith(t *testing.T, tasks ...task.HookTask) *task.Registry {
	t.Helper()
	reg := task.NewRegistry()
	for _, tk := range tasks {
		require.NoError(t, reg.Register(tk))
	}
	return reg
}

func TestStagesForDefaultsToRegistryTasks(t *testing.T) {
	reg := registryWith(t,
		stub("format", []hook.Type{hook.PreCommit}, true, true, passResult()),
		stub("test", []hook.Type{hook.PrePush}, true, false, passResult()),
	)
	r := New(reg, "1.0.0")

	stages, err := r.StagesFor(nil, hook.PreCommit)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, "pre-commit", stages[0].Name)
	assert.Equal(t, []stage.TaskRef{{ID: "format", Mode: stage.ModeCheck}}, stages[0].Tasks)
}

func TestStagesForPrefersManifest(t *testing.T) {
	reg := registryWith(t, stub("format", []hook.Type{hook.PreCommit}, true, true, passResult()))
	r := New(reg, "1.0.0")

	m, err := config.ParseManifest([]byte(`
hooks:
  pre-commit:
    stages:
      - name: only
        tasks: [format]
`), false)
	require.NoError(t, err)

	stages, err := r.StagesFor(m, hook.PreCommit)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, "only", stages[0].Name)
}

func TestApplyFixOverrideOnlyUpgradesFixableChecks(t *testing.T) {
	reg := registryWith(t,
		stub("format", []hook.Type{hook.PreCommit}, true, true, passResult()),
		stub("unused", []hook.Type{hook.PreCommit}, false, false, passResult()),
	)
	r := New(reg, "1.0.0")

	in := []stage.Stage{{Name: "s", Tasks: []stage.TaskRef{
		{ID: "format", Mode: stage.ModeCheck},
		{ID: "unused", Mode: stage.ModeCheck},
		{ID: "format", Mode: stage.ModeFixOnly},
	}}}
	out := r.applyFixOverride(in)
	assert.Equal(t, stage.ModeFix, out[0].Tasks[0].Mode)
	assert.Equal(t, stage.ModeCheck, out[0].Tasks[1].Mode, "non-fixable tasks stay in check mode")
	assert.Equal(t, stage.ModeFixOnly, out[0].Tasks[2].Mode, "explicit modes are preserved")
	// input untouched
	assert.Equal(t, stage.ModeCheck, in[0].Tasks[0].Mode)
}

func TestExecuteSuccessExitCode(t *testing.T) {
	reg := registryWith(t, stub("format", []hook.Type{hook.PreCommit}, true, false, passResult()))
	r := New(reg, "1.0.0")

	var buf bytes.Buffer
	code := r.Execute(context.Background(), testContext(hook.PreCommit), nil, Options{Out: &buf})
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, buf.String(), "hook passed")
}

func TestExecuteFailureExitCode(t *testing.T) {
	reg := registryWith(t, stub("format", []hook.Type{hook.PreCommit}, true, false, failResult()))
	r := New(reg, "1.0.0")

	var buf bytes.Buffer
	code := r.Execute(context.Background(), testContext(hook.PreCommit), nil, Options{Out: &buf})
	assert.Equal(t, exitcode.CheckFailure, code)
	assert.Contains(t, buf.String(), "Sources/Foo.swift:10:5: error: missing trailing comma")
}

func TestExecuteBlockedGraphExitCode(t *testing.T) {
	reg := registryWith(t,
		stub("format", []hook.Type{hook.PreCommit}, true, false, failResult()),
		stub("test", []hook.Type{hook.PreCommit}, true, false, passResult()),
	)
	r := New(reg, "1.0.0")

	m, err := config.ParseManifest([]byte(`
hooks:
  pre-commit:
    stages:
      - name: quality
        tasks: [format]
      - name: test
        tasks: [test]
        dependencies: [quality]
`), false)
	require.NoError(t, err)

	var buf bytes.Buffer
	code := r.Execute(context.Background(), testContext(hook.PreCommit), m, Options{Out: &buf})
	assert.Equal(t, exitcode.BlockedGraph, code)
	assert.Contains(t, buf.String(), "blocked stages:")
	assert.Contains(t, buf.String(), "test: blocked by quality")
}

func TestExecuteConfigErrorExitCode(t *testing.T) {
	reg := registryWith(t, stub("format", []hook.Type{hook.PreCommit}, true, false, passResult()))
	r := New(reg, "1.0.0")

	m, err := config.ParseManifest([]byte(`
hooks:
  pre-commit:
    stages:
      - name: a
        tasks: [format]
        dependencies: [b]
      - name: b
        tasks: [format]
        dependencies: [a]
`), false)
	require.NoError(t, err)

	code := r.Execute(context.Background(), testContext(hook.PreCommit), m, Options{})
	assert.Equal(t, exitcode.ConfigError, code)
}

func TestExecuteNoTasksForHook(t *testing.T) {
	reg := registryWith(t, stub("format", []hook.Type{hook.PreCommit}, true, false, passResult()))
	r := New(reg, "1.0.0")

	code := r.Execute(context.Background(), testContext(hook.PrePush), nil, Options{})
	assert.Equal(t, exitcode.Success, code)
}

func TestBuildRegistryIncludesBuiltinsAndShellTasks(t *testing.T) {
	settings, err := config.LoadSettings(t.TempDir())
	require.NoError(t, err)

	m, err := config.ParseManifest([]byte(`
shell:
  - id: lint-docs
    command: vale
    hooks: [pre-commit]
`), false)
	require.NoError(t, err)

	reg, err := BuildRegistry(settings, m)
	require.NoError(t, err)

	for _, id := range []string{"format", "build", "test", "unused", "duplicates", "version-sync", "lint-docs"} {
		_, ok := reg.Resolve(id)
		assert.True(t, ok, "registry should hold %s", id)
	}
}

func TestRenderJSONRoundTripsOutcome(t *testing.T) {
	rep := &Report{
		Tool:    "latch",
		Version: "1.0.0",
		Hook:    hook.CI,
		Target:  "/tmp/project",
		Elapsed: 120 * time.Millisecond,
		Outcome: &stage.Outcome{Success: true, Stages: []stage.Result{{Name: "all", Success: true}}},
	}
	var buf bytes.Buffer
	require.NoError(t, rep.RenderJSON(&buf))
	assert.Contains(t, buf.String(), `"hook": "ci"`)
	assert.Contains(t, buf.String(), `"success": true`)
}

func reportWith(outcome *stage.Outcome) *Report {
	return &Report{
		Tool:    "latch",
		Version: "1.0.0",
		Hook:    hook.PreCommit,
		Target:  "/tmp/project",
		Outcome: outcome,
	}
}

func TestRenderConciseNoColorFlagStripsEscapes(t *testing.T) {
	rep := reportWith(&stage.Outcome{Success: true, Stages: []stage.Result{{
		Name:    "all",
		Success: true,
		Tasks:   []stage.TaskRunResult{{TaskID: "format", Mode: stage.ModeCheck, Result: passResult()}},
	}}})

	var buf bytes.Buffer
	require.NoError(t, rep.RenderConcise(&buf, true))
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "hook passed")
}

func TestRenderConciseHonorsNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	rep := reportWith(&stage.Outcome{Success: true, Stages: []stage.Result{{Name: "all", Success: true}}})

	var buf bytes.Buffer
	require.NoError(t, rep.RenderConcise(&buf, false))
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestRenderConciseReportsAppliedFixes(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	rep := reportWith(&stage.Outcome{Success: true, Stages: []stage.Result{{
		Name:    "fixups",
		Success: true,
		Tasks: []stage.TaskRunResult{
			{TaskID: "format", Mode: stage.ModeFix, Result: passResult(),
				Fix: &task.FixResult{FixesApplied: 2, FilesModified: []string{"a.go", "b.go"}}},
			{TaskID: "lint-docs", Mode: stage.ModeFix, Result: passResult(),
				Fix: &task.FixResult{FixesApplied: 1}},
			{TaskID: "unused", Mode: stage.ModeFix, Result: passResult(),
				Fix: &task.FixResult{}},
		},
	}}})

	var buf bytes.Buffer
	require.NoError(t, rep.RenderConcise(&buf, false))
	out := buf.String()
	assert.Contains(t, out, "fixed 2 file(s)")
	assert.Contains(t, out, "applied 1 fix(es)")
	assert.NotContains(t, out, "0 file(s)")
	assert.NotContains(t, out, "0 fix(es)")
}

func TestWorkersForScalesWithGOMAXPROCS(t *testing.T) {
	n := runtime.GOMAXPROCS(0)
	assert.Equal(t, n, WorkersFor(100))
	assert.Equal(t, n, WorkersFor(0))   // unset settings fall back to full
	assert.Equal(t, n, WorkersFor(150)) // out of range clamps to 100
	assert.GreaterOrEqual(t, WorkersFor(1), 1)

	half := n * 50 / 100
	if half < 1 {
		half = 1
	}
	assert.Equal(t, half, WorkersFor(50))
}
