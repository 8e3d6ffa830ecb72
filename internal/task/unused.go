package task

import (
	"context"
	"time"

	"github.com/latchhq/latch/internal/hook"
)

// UnusedConfig configures the unused-code task.
type UnusedConfig struct {
	// Tool is the analyzer binary. Defaults to staticcheck.
	Tool string
	// Args is the analyzer argument vector. Defaults to the unused check only.
	Args []string
	// Blocking controls whether findings fail the stage.
	Blocking bool
	// Strict keeps unmatched analyzer output as message-only diagnostics.
	Strict bool
}

// UnusedTask finds unused code via an external analyzer that reports findings
// in the path:line:col: severity: message shape.
type UnusedTask struct {
	Meta
	tool
	toolName string
	args     []string
}

// NewUnusedTask builds the unused-code task from configuration.
func NewUnusedTask(cfg UnusedConfig, resolver ExecutableResolver, proc ProcessRunner) *UnusedTask {
	name := cfg.Tool
	if name == "" {
		name = "staticcheck"
	}
	args := cfg.Args
	if len(args) == 0 {
		args = []string{"-checks", "U1000", "./..."}
	}
	return &UnusedTask{
		Meta: Meta{
			TaskID:      "unused",
			TaskName:    "Unused code",
			HookTypes:   []hook.Type{hook.PrePush, hook.CI},
			IsBlocking:  cfg.Blocking,
			Safety:      FixCautious,
			ParseOutput: cfg.Strict,
		},
		tool:     tool{Resolver: resolver, Proc: proc},
		toolName: name,
		args:     args,
	}
}

func (t *UnusedTask) Run(ctx context.Context, hctx *hook.Context) Result {
	start := time.Now()

	res, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, t.args, t.Required, start)
	if early != nil {
		return *early
	}

	diags := ParseDiagnostics(res.Output, t.ParseOutput, false)
	// Analyzers report unused code at warning strength unless the whole run
	// blew up without findings.
	if len(diags) == 0 && res.ExitCode != 0 {
		diags = []Diagnostic{{Severity: SeverityError, Message: "unused-code analysis failed with no parsable output"}}
	}
	return Finalize(diags, t.IsBlocking, len(hctx.ScopedFiles()), time.Since(start))
}

func (t *UnusedTask) Fix(context.Context, *hook.Context) FixResult {
	return FixResult{Errors: []string{"unused-code task has no fix mode"}}
}
