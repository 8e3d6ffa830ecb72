package task

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/latchhq/latch/internal/hook"
)

// BuildConfig configures the build task.
type BuildConfig struct {
	// Tool is the build driver. Defaults to go.
	Tool string
	// Args is the build argument vector. Defaults to "build ./...".
	Args []string
	// Required fails the task when the tool is missing instead of skipping.
	Required bool
}

// BuildTask compiles the project and surfaces compiler errors as diagnostics.
// Compiler output follows the path:line:col: message shape closely enough for
// the shared parser; unmatched lines are kept verbatim so linker errors are
// not lost.
type BuildTask struct {
	Meta
	tool
	toolName string
	args     []string
}

// NewBuildTask builds the build task from configuration.
func NewBuildTask(cfg BuildConfig, resolver ExecutableResolver, proc ProcessRunner) *BuildTask {
	name := cfg.Tool
	if name == "" {
		name = "go"
	}
	args := cfg.Args
	if len(args) == 0 {
		args = []string{"build", "./..."}
	}
	return &BuildTask{
		Meta: Meta{
			TaskID:      "build",
			TaskName:    "Build",
			HookTypes:   []hook.Type{hook.PrePush, hook.CI},
			IsBlocking:  true,
			Safety:      FixSafe,
			ParseOutput: true,
			Required:    cfg.Required,
		},
		tool:     tool{Resolver: resolver, Proc: proc},
		toolName: name,
		args:     args,
	}
}

func (t *BuildTask) Run(ctx context.Context, hctx *hook.Context) Result {
	start := time.Now()

	res, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, t.args, t.Required, start)
	if early != nil {
		return *early
	}
	if res.ExitCode == 0 {
		return Finalize(nil, t.IsBlocking, len(hctx.ScopedFiles()), time.Since(start))
	}

	diags := parseCompilerOutput(res.Output, t.ParseOutput)
	if len(diags) == 0 {
		diags = []Diagnostic{{Severity: SeverityError, Message: "build failed with no parsable output"}}
	}
	return Finalize(diags, t.IsBlocking, len(hctx.ScopedFiles()), time.Since(start))
}

// compilerLine matches go/clang style output: the severity token is omitted
// and every located line on a failed build is an error.
var compilerLine = regexp.MustCompile(`^(.+?\.\w+):(\d+)(?::(\d+))?:\s*(.+)$`)

func parseCompilerOutput(output string, keepUnmatched bool) []Diagnostic {
	var diags []Diagnostic
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := compilerLine.FindStringSubmatch(line)
		if m == nil {
			if keepUnmatched {
				diags = append(diags, Diagnostic{Severity: SeverityInfo, Message: trimmed})
			}
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col := 0
		if m[3] != "" {
			col, _ = strconv.Atoi(m[3])
		}
		diags = append(diags, Diagnostic{
			File:     m[1],
			Line:     lineNo,
			Column:   col,
			Severity: SeverityError,
			Message:  strings.TrimSpace(m[4]),
		})
	}
	return diags
}

func (t *BuildTask) Fix(context.Context, *hook.Context) FixResult {
	return FixResult{Errors: []string{"build task has no fix mode"}}
}
