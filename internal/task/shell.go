package task

import (
	"context"
	"fmt"
	"time"

	"github.com/latchhq/latch/internal/hook"
)

// ShellConfig defines a user-supplied shell command task from the manifest.
type ShellConfig struct {
	ID       string
	Name     string
	Command  string
	Args     []string
	Hooks    []hook.Type
	Blocking bool
	// FixCommand, when set, makes the task fixable.
	FixCommand string
	FixArgs    []string
	// ParseOutput keeps unmatched output lines as message-only diagnostics.
	ParseOutput bool
	Patterns    []string
}

// ShellTask runs an arbitrary user-defined command as a check. Output in the
// path:line:col: severity: message shape becomes located diagnostics; a
// non-zero exit with no parsable findings becomes a single error diagnostic.
type ShellTask struct {
	Meta
	tool
	cfg ShellConfig
}

// NewShellTask builds a shell task from its manifest definition.
func NewShellTask(cfg ShellConfig, resolver ExecutableResolver, proc ProcessRunner) (*ShellTask, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("shell task requires an id")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("shell task %q requires a command", cfg.ID)
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Command
	}
	hooks := cfg.Hooks
	if len(hooks) == 0 {
		hooks = []hook.Type{hook.PreCommit, hook.PrePush, hook.CI}
	}
	return &ShellTask{
		Meta: Meta{
			TaskID:      cfg.ID,
			TaskName:    name,
			HookTypes:   hooks,
			IsBlocking:  cfg.Blocking,
			Fixable:     cfg.FixCommand != "",
			Safety:      FixCautious,
			Patterns:    cfg.Patterns,
			ParseOutput: cfg.ParseOutput,
		},
		tool: tool{Resolver: resolver, Proc: proc},
		cfg:  cfg,
	}, nil
}

func (t *ShellTask) Run(ctx context.Context, hctx *hook.Context) Result {
	start := time.Now()

	res, early := t.invoke(ctx, hctx, t.TaskID, t.cfg.Command, t.cfg.Args, t.Required, start)
	if early != nil {
		return *early
	}

	diags := ParseDiagnostics(res.Output, t.ParseOutput, false)
	if res.ExitCode != 0 && !hasError(diags) {
		diags = append(diags, Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("%s exited with status %d", t.cfg.Command, res.ExitCode),
		})
	}
	return Finalize(diags, t.IsBlocking, len(hctx.FilesMatching(t.Patterns)), time.Since(start))
}

func (t *ShellTask) Fix(ctx context.Context, hctx *hook.Context) FixResult {
	if t.cfg.FixCommand == "" {
		return FixResult{Errors: []string{fmt.Sprintf("task %q has no fix command", t.TaskID)}}
	}
	// Run the check first: a clean tree needs no fix, and repeated fixes
	// must keep reporting nothing to apply.
	if check, early := t.invoke(ctx, hctx, t.TaskID, t.cfg.Command, t.cfg.Args, t.Required, time.Now()); early == nil {
		if check.ExitCode == 0 && !hasError(ParseDiagnostics(check.Output, t.ParseOutput, false)) {
			return FixResult{}
		}
	}
	res, early := t.invoke(ctx, hctx, t.TaskID, t.cfg.FixCommand, t.cfg.FixArgs, t.Required, time.Now())
	if early != nil {
		return FixResult{Errors: []string{fmt.Sprintf("fix command %q not available", t.cfg.FixCommand)}}
	}
	if res.ExitCode != 0 {
		return FixResult{Errors: []string{fmt.Sprintf("%s exited with status %d", t.cfg.FixCommand, res.ExitCode)}}
	}
	// The fix command reports nothing machine-readable; re-validation in
	// check mode is what surfaces any remaining problems.
	return FixResult{FixesApplied: 1}
}

func hasError(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
