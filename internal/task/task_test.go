package task

import (
	"context"
	"errors"
	"testing"

	"github.com/latchhq/latch/internal/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	missing bool
}

func (f fakeResolver) Resolve(tool string) (string, error) {
	if f.missing {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/opt/tools/" + tool, nil
}

type fakeProc struct {
	output string
	exit   int
	err    error
	calls  [][]string
}

func (f *fakeProc) Run(_ context.Context, executable string, args []string, _ string) (ProcessResult, error) {
	f.calls = append(f.calls, append([]string{executable}, args...))
	return ProcessResult{Output: f.output, ExitCode: f.exit}, f.err
}

func (f *fakeProc) Stream(ctx context.Context, executable string, args []string, cwd string, onLine func(LineStream, string)) (ProcessResult, error) {
	return f.Run(ctx, executable, args, cwd)
}

// scriptedProc replays queued results, one per invocation, repeating the last.
type scriptedProc struct {
	script []ProcessResult
	calls  [][]string
}

func (s *scriptedProc) Run(_ context.Context, executable string, args []string, _ string) (ProcessResult, error) {
	s.calls = append(s.calls, append([]string{executable}, args...))
	res := s.script[0]
	if len(s.script) > 1 {
		s.script = s.script[1:]
	}
	return res, nil
}

func (s *scriptedProc) Stream(ctx context.Context, executable string, args []string, cwd string, _ func(LineStream, string)) (ProcessResult, error) {
	return s.Run(ctx, executable, args, cwd)
}

func testContext() *hook.Context {
	return &hook.Context{
		ProjectRoot: "/tmp/project",
		Hook:        hook.PreCommit,
		Scope:       hook.ScopeAll,
		AllFiles:    []hook.File{{Path: "main.go"}, {Path: "util.go"}, {Path: "README.md"}},
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	ft := NewFormatTask(FormatConfig{Blocking: true}, fakeResolver{}, &fakeProc{})
	require.NoError(t, reg.Register(ft))
	err := reg.Register(NewFormatTask(FormatConfig{}, fakeResolver{}, &fakeProc{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestRegistryForHook(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewFormatTask(FormatConfig{}, fakeResolver{}, &fakeProc{})))
	require.NoError(t, reg.Register(NewBuildTask(BuildConfig{}, fakeResolver{}, &fakeProc{})))

	assert.Equal(t, []string{"format"}, reg.ForHook(hook.PreCommit))
	assert.Equal(t, []string{"build", "format"}, reg.ForHook(hook.PrePush))
}

func TestFormatTaskReportsDirtyFiles(t *testing.T) {
	proc := &fakeProc{output: "main.go\nutil.go\n"}
	ft := NewFormatTask(FormatConfig{Blocking: true}, fakeResolver{}, proc)

	res := ft.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "main.go", res.Diagnostics[0].File)
	assert.True(t, res.Diagnostics[0].Fixable)
	assert.True(t, res.FixesAvailable)
	assert.Equal(t, 2, res.FilesChecked)
}

func TestFormatTaskCleanTree(t *testing.T) {
	ft := NewFormatTask(FormatConfig{Blocking: true}, fakeResolver{}, &fakeProc{output: "\n"})
	res := ft.Run(context.Background(), testContext())
	assert.Equal(t, StatusPassed, res.Status)
	assert.Empty(t, res.Diagnostics)
}

func TestFormatTaskMissingToolSkips(t *testing.T) {
	ft := NewFormatTask(FormatConfig{Blocking: true}, fakeResolver{missing: true}, &fakeProc{})
	res := ft.Run(context.Background(), testContext())
	require.Equal(t, StatusSkipped, res.Status)
	assert.Contains(t, res.SkipReason, "gofmt")
	assert.Empty(t, res.Diagnostics)
}

func TestFormatTaskFixIdempotentOnCleanTree(t *testing.T) {
	proc := &fakeProc{output: ""}
	ft := NewFormatTask(FormatConfig{}, fakeResolver{}, proc)

	fix := ft.Fix(context.Background(), testContext())
	assert.Empty(t, fix.FilesModified)
	assert.Zero(t, fix.FixesApplied)
	assert.Empty(t, fix.Errors)
	// Only the list pass ran; nothing was rewritten.
	require.Len(t, proc.calls, 1)
	assert.Equal(t, "-l", proc.calls[0][1])
}

func TestBuildTaskParsesCompilerErrors(t *testing.T) {
	out := "# github.com/latchhq/latch/internal/demo\ninternal/demo/demo.go:7:2: undefined: frobnicate\n"
	bt := NewBuildTask(BuildConfig{}, fakeResolver{}, &fakeProc{output: out, exit: 1})

	res := bt.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, "internal/demo/demo.go", d.File)
	assert.Equal(t, 7, d.Line)
	assert.Equal(t, 2, d.Column)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, "undefined: frobnicate", d.Message)
}

func TestBuildTaskSuccess(t *testing.T) {
	bt := NewBuildTask(BuildConfig{}, fakeResolver{}, &fakeProc{})
	res := bt.Run(context.Background(), testContext())
	assert.Equal(t, StatusPassed, res.Status)
}

func TestBuildTaskRequiredToolMissing(t *testing.T) {
	bt := NewBuildTask(BuildConfig{Required: true}, fakeResolver{missing: true}, &fakeProc{})
	res := bt.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, "required tool")
}

func TestTestTaskParsesFailedTests(t *testing.T) {
	out := `{"Action":"run","Package":"p","Test":"TestA"}
{"Action":"fail","Package":"github.com/latchhq/latch/internal/stage","Test":"TestBarrier"}
{"Action":"fail","Package":"github.com/latchhq/latch/internal/stage"}
not json at all
{"Action":"pass","Package":"p","Test":"TestB"}`
	tt := NewTestTask(TestConfig{}, fakeResolver{}, &fakeProc{output: out, exit: 1})

	res := tt.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, "TestBarrier")
	assert.Equal(t, "TestBarrier", res.Diagnostics[0].Rule)
}

func TestTestTaskExitFailureWithoutEvents(t *testing.T) {
	tt := NewTestTask(TestConfig{}, fakeResolver{}, &fakeProc{output: "build broke\n", exit: 2})
	res := tt.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Diagnostics[0].Message, "status 2")
}

func TestUnusedTaskWarningsDoNotFailNonBlocking(t *testing.T) {
	out := "internal/task/dead.go:12:6: func obsolete is unused (U1000)\n"
	ut := NewUnusedTask(UnusedConfig{Blocking: false}, fakeResolver{}, &fakeProc{output: out, exit: 1})

	res := ut.Run(context.Background(), testContext())
	require.Equal(t, StatusWarning, res.Status)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 12, res.Diagnostics[0].Line)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
}

func TestDuplicatesTaskParsesReport(t *testing.T) {
	out := `{
		"duplicates": [
			{"lines": 18, "firstFile": {"name": "a.go", "start": 10}, "secondFile": {"name": "b.go", "start": 40}}
		],
		"statistics": {"total": {"percentage": 7.5}}
	}`
	dt := NewDuplicatesTask(DuplicatesConfig{Threshold: 5, Blocking: true}, fakeResolver{}, &fakeProc{output: out})

	res := dt.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "a.go", res.Diagnostics[0].File)
	assert.Equal(t, 10, res.Diagnostics[0].Line)
	assert.Contains(t, res.Diagnostics[1].Message, "exceeds threshold")
}

func TestShellTaskNonZeroExit(t *testing.T) {
	st, err := NewShellTask(ShellConfig{ID: "lint-docs", Command: "mdlint", Blocking: true}, fakeResolver{}, &fakeProc{output: "bad docs\n", exit: 3})
	require.NoError(t, err)

	res := st.Run(context.Background(), testContext())
	require.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Diagnostics[0].Message, "status 3")
}

func TestShellTaskRequiresCommand(t *testing.T) {
	_, err := NewShellTask(ShellConfig{ID: "x"}, fakeResolver{}, &fakeProc{})
	require.Error(t, err)
}

func TestShellTaskFixOnCleanTreeDoesNothing(t *testing.T) {
	proc := &fakeProc{}
	st, err := NewShellTask(ShellConfig{ID: "lint-docs", Command: "mdlint", FixCommand: "mdfix"}, fakeResolver{}, proc)
	require.NoError(t, err)

	fix := st.Fix(context.Background(), testContext())
	assert.Zero(t, fix.FixesApplied)
	assert.Empty(t, fix.Errors)
	// Only the check ran; the fix command was never invoked.
	require.Len(t, proc.calls, 1)
	assert.Equal(t, "/opt/tools/mdlint", proc.calls[0][0])
}

func TestShellTaskFixRunsFixCommandOnDirtyTree(t *testing.T) {
	proc := &scriptedProc{script: []ProcessResult{
		{Output: "bad docs\n", ExitCode: 3},
		{ExitCode: 0},
	}}
	st, err := NewShellTask(ShellConfig{ID: "lint-docs", Command: "mdlint", FixCommand: "mdfix"}, fakeResolver{}, proc)
	require.NoError(t, err)

	fix := st.Fix(context.Background(), testContext())
	assert.Equal(t, 1, fix.FixesApplied)
	assert.Empty(t, fix.Errors)
	require.Len(t, proc.calls, 2)
	assert.Equal(t, "/opt/tools/mdlint", proc.calls[0][0])
	assert.Equal(t, "/opt/tools/mdfix", proc.calls[1][0])
}
