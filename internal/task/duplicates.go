package task

import (
	"context"
	"fmt"
	"time"

	"github.com/latchhq/latch/internal/hook"
	"github.com/tidwall/gjson"
)

// DuplicatesConfig configures the duplicate-code task.
type DuplicatesConfig struct {
	// Tool is the clone detector binary. Defaults to jscpd.
	Tool string
	// Args is the detector argument vector. Defaults to JSON console output
	// over the project root.
	Args []string
	// Threshold is the duplication percentage above which the run fails.
	// Zero keeps every finding at warning strength.
	Threshold float64
	// Blocking controls whether findings fail the stage.
	Blocking bool
}

// DuplicatesTask detects copy-pasted code via a jscpd-compatible detector and
// reads its JSON report from stdout.
type DuplicatesTask struct {
	Meta
	tool
	toolName  string
	args      []string
	threshold float64
}

// NewDuplicatesTask builds the duplicate-code task from configuration.
func NewDuplicatesTask(cfg DuplicatesConfig, resolver ExecutableResolver, proc ProcessRunner) *DuplicatesTask {
	name := cfg.Tool
	if name == "" {
		name = "jscpd"
	}
	args := cfg.Args
	if len(args) == 0 {
		args = []string{"--reporters", "consoleFull", "--mode", "strict", "--format", "json", "--silent", "."}
	}
	return &DuplicatesTask{
		Meta: Meta{
			TaskID:     "duplicates",
			TaskName:   "Duplicate code",
			HookTypes:  []hook.Type{hook.CI},
			IsBlocking: cfg.Blocking,
			Safety:     FixCautious,
		},
		tool:      tool{Resolver: resolver, Proc: proc},
		toolName:  name,
		args:      args,
		threshold: cfg.Threshold,
	}
}

func (t *DuplicatesTask) Run(ctx context.Context, hctx *hook.Context) Result {
	start := time.Now()

	res, early := t.invoke(ctx, hctx, t.TaskID, t.toolName, t.args, t.Required, start)
	if early != nil {
		return *early
	}

	diags := t.parseReport(res.Output)
	return Finalize(diags, t.IsBlocking, len(hctx.ScopedFiles()), time.Since(start))
}

func (t *DuplicatesTask) Fix(context.Context, *hook.Context) FixResult {
	return FixResult{Errors: []string{"duplicate-code task has no fix mode"}}
}

// parseReport reads a jscpd JSON report: one diagnostic per clone pair, plus
// an error diagnostic when overall duplication exceeds the threshold.
func (t *DuplicatesTask) parseReport(output string) []Diagnostic {
	if !gjson.Valid(output) {
		return nil
	}
	report := gjson.Parse(output)

	var diags []Diagnostic
	report.Get("duplicates").ForEach(func(_, dup gjson.Result) bool {
		first := dup.Get("firstFile")
		second := dup.Get("secondFile")
		diags = append(diags, Diagnostic{
			File:     first.Get("name").String(),
			Line:     int(first.Get("start").Int()),
			Severity: SeverityWarning,
			Message: fmt.Sprintf("%d duplicated lines, clone of %s:%d",
				dup.Get("lines").Int(), second.Get("name").String(), second.Get("start").Int()),
			Rule: "clone",
		})
		return true
	})

	if t.threshold > 0 {
		pct := report.Get("statistics.total.percentage").Float()
		if pct > t.threshold {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplication %.2f%% exceeds threshold %.2f%%", pct, t.threshold),
				Rule:     "threshold",
			})
		}
	}
	return diags
}
