package task

import (
	"context"
	"fmt"
	"time"

	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/pkg/logger"
)

// tool bundles the collaborators every subprocess-backed task needs.
type tool struct {
	Resolver ExecutableResolver
	Proc     ProcessRunner
}

func (t tool) resolver() ExecutableResolver {
	if t.Resolver != nil {
		return t.Resolver
	}
	return PathResolver{}
}

func (t tool) proc() ProcessRunner {
	if t.Proc != nil {
		return t.Proc
	}
	return ExecRunner{}
}

// invoke resolves and runs an external tool from the project root. When the
// tool cannot be resolved it returns a skip (or, for required tools, failed)
// result instead of an error: a missing optional tool degrades the check to
// "not run", it does not crash the invocation. A launch failure is treated
// the same way.
func (t tool) invoke(ctx context.Context, hctx *hook.Context, taskID, name string, args []string, required bool, start time.Time) (ProcessResult, *Result) {
	path, err := t.resolver().Resolve(name)
	if err != nil {
		return ProcessResult{}, t.unavailable(taskID, name, required, start)
	}

	var res ProcessResult
	if hctx.Verbose {
		res, err = t.proc().Stream(ctx, path, args, hctx.ProjectRoot, verboseLineLogger(true, taskID))
	} else {
		res, err = t.proc().Run(ctx, path, args, hctx.ProjectRoot)
	}
	if err != nil {
		logger.Warn("tool failed to launch", logger.String("task", taskID), logger.String("tool", name), logger.Err(err))
		return ProcessResult{}, t.unavailable(taskID, name, required, start)
	}
	return res, nil
}

func (t tool) unavailable(taskID, name string, required bool, start time.Time) *Result {
	reason := fmt.Sprintf("tool %q not available", name)
	if required {
		res := Result{
			Status:   StatusFailed,
			Duration: time.Since(start),
			Diagnostics: []Diagnostic{{
				Severity: SeverityError,
				Message:  fmt.Sprintf("required tool %q is not available", name),
			}},
		}
		return &res
	}
	logger.Debug("skipping task", logger.String("task", taskID), logger.String("reason", reason))
	res := Skipped(reason, time.Since(start))
	return &res
}
