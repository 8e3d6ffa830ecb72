package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latchhq/latch/internal/hook"
)

// FormatConfig configures the format task.
type FormatConfig struct {
	// Tool is the formatter binary. Defaults to gofmt.
	Tool string
	// Blocking controls whether format findings fail the stage.
	Blocking bool
	// Patterns scopes the files the formatter considers.
	Patterns []string
}

// FormatTask checks (and fixes) source formatting by invoking a list-mode
// formatter: the tool prints one path per line for each file that needs
// rewriting.
type FormatTask struct {
	Meta
	tool
	toolName string
}

// NewFormatTask builds the format task from configuration.
func NewFormatTask(cfg FormatConfig, resolver ExecutableResolver, proc ProcessRunner) *FormatTask {
	name := cfg.Tool
	if name == "" {
		name = "gofmt"
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"**/*.go"}
	}
	return &FormatTask{
		Meta: Meta{
			TaskID:     "format",
			TaskName:   "Formatting",
			HookTypes:  []hook.Type{hook.PreCommit, hook.PrePush, hook.CI},
			IsBlocking: cfg.Blocking,
			Fixable:    true,
			Safety:     FixSafe,
			Patterns:   patterns,
		},
		tool:     tool{Resolver: resolver, Proc: proc},
		toolName: name,
	}
}

func (t *FormatTask) Run(ctx context.Context, hctx *hook.Context) Result {
	start := time.Now()

	files := t.targets(hctx)
	if len(files) == 0 {
		return Finalize(nil, t.IsBlocking, 0, time.Since(start))
	}

	args := append([]string{"-l"}, files...)
	res, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, args, t.Required, start)
	if early != nil {
		return *early
	}

	// List mode prints one path per line; anything else is a tool error.
	var diags []Diagnostic
	for _, line := range strings.Split(strings.TrimSpace(res.Output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		diags = append(diags, Diagnostic{
			File:     line,
			Severity: SeverityError,
			Message:  fmt.Sprintf("file is not formatted (run %s -w to fix)", t.toolName),
			Fixable:  true,
		})
	}
	return Finalize(diags, t.IsBlocking, len(files), time.Since(start))
}

// Fix rewrites unformatted files in place. Idempotent: a clean tree produces
// an empty FixResult.
func (t *FormatTask) Fix(ctx context.Context, hctx *hook.Context) FixResult {
	files := t.targets(hctx)
	if len(files) == 0 {
		return FixResult{}
	}

	// List first so FilesModified reflects only files that actually change.
	listArgs := append([]string{"-l"}, files...)
	listRes, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, listArgs, t.Required, time.Now())
	if early != nil {
		if early.Status == StatusSkipped {
			return FixResult{}
		}
		return FixResult{Errors: []string{fmt.Sprintf("tool %q not available", t.toolName)}}
	}

	var dirty []string
	for _, line := range strings.Split(strings.TrimSpace(listRes.Output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			dirty = append(dirty, line)
		}
	}
	if len(dirty) == 0 {
		return FixResult{}
	}

	writeArgs := append([]string{"-w"}, dirty...)
	writeRes, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, writeArgs, t.Required, time.Now())
	if early != nil {
		return FixResult{Errors: []string{fmt.Sprintf("tool %q not available", t.toolName)}}
	}
	out := FixResult{FilesModified: dirty, FixesApplied: len(dirty)}
	if writeRes.ExitCode != 0 {
		out.Errors = append(out.Errors, fmt.Sprintf("%s -w exited with status %d: %s", t.toolName, writeRes.ExitCode, strings.TrimSpace(writeRes.Output)))
	}
	return out
}

func (t *FormatTask) targets(hctx *hook.Context) []string {
	var out []string
	for _, f := range hctx.FilesMatching(t.Patterns) {
		out = append(out, f.Path)
	}
	return out
}
