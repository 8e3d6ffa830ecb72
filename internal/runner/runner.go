// Package runner turns a lifecycle trigger into a stage run and a report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/latchhq/latch/internal/config"
	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/internal/stage"
	"github.com/latchhq/latch/internal/task"
	"github.com/latchhq/latch/pkg/exitcode"
	"github.com/latchhq/latch/pkg/logger"
)

// Options tune one hook run.
type Options struct {
	// Fix upgrades check references to fix mode for tasks that support it.
	Fix bool
	// JSON renders the report as JSON instead of the concise format.
	JSON bool
	// NoColor suppresses ANSI escapes in the concise report.
	NoColor bool
	// Workers caps how many tasks run at once across the hook. Zero means
	// unlimited.
	Workers int
	// Out receives the rendered report. Defaults to os.Stdout in the CLI.
	Out io.Writer
}

// WorkersFor translates a concurrency percentage into a worker cap relative
// to GOMAXPROCS. Percentages outside (0,100] fall back to 100; the result is
// never below one.
func WorkersFor(percent int) int {
	if percent <= 0 || percent > 100 {
		percent = 100
	}
	workers := runtime.GOMAXPROCS(0) * percent / 100
	if workers < 1 {
		workers = 1
	}
	return workers
}

// HookRunner composes the task registry, the stage scheduler, and the
// reporter into the unit the CLI invokes.
type HookRunner struct {
	registry *task.Registry
	stages   *stage.Runner
	version  string
}

// New creates a hook runner over a populated task registry.
func New(registry *task.Registry, version string) *HookRunner {
	return &HookRunner{
		registry: registry,
		stages:   stage.NewRunner(registry),
		version:  version,
	}
}

// StagesFor resolves the stage list for a lifecycle point. Manifest
// configuration wins; without one (or when the manifest does not mention the
// hook) every registered task for the hook forms a single default stage. The
// fix override rewrites check references to fix mode where the task supports
// it, so `latch run pre-commit --fix` repairs instead of just reporting.
func (r *HookRunner) StagesFor(m *config.Manifest, ht hook.Type) ([]stage.Stage, error) {
	var stages []stage.Stage
	if m != nil {
		configured, err := m.StagesFor(ht)
		if err != nil {
			return nil, err
		}
		stages = configured
	}
	if len(stages) == 0 {
		stages = r.defaultStages(ht)
	}
	return stages, nil
}

func (r *HookRunner) defaultStages(ht hook.Type) []stage.Stage {
	ids := r.registry.ForHook(ht)
	if len(ids) == 0 {
		return nil
	}
	refs := make([]stage.TaskRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, stage.TaskRef{ID: id, Mode: stage.ModeCheck})
	}
	return []stage.Stage{{Name: string(ht), Tasks: refs, Parallel: true}}
}

func (r *HookRunner) applyFixOverride(stages []stage.Stage) []stage.Stage {
	out := make([]stage.Stage, len(stages))
	for i, st := range stages {
		refs := make([]stage.TaskRef, len(st.Tasks))
		for j, ref := range st.Tasks {
			if ref.Mode == stage.ModeCheck {
				if t, ok := r.registry.Resolve(ref.ID); ok && t.SupportsFix() {
					ref.Mode = stage.ModeFix
				}
			}
			refs[j] = ref
		}
		st.Tasks = refs
		out[i] = st
	}
	return out
}

// Execute runs the stage list for the context's hook and renders the report.
// The returned int is the process exit code.
func (r *HookRunner) Execute(ctx context.Context, hctx *hook.Context, m *config.Manifest, opts Options) int {
	stages, err := r.StagesFor(m, hctx.Hook)
	if err != nil {
		logger.Error("invalid hook configuration", logger.Err(err))
		return exitcode.ConfigError
	}
	if len(stages) == 0 {
		logger.Info("no tasks configured for hook", logger.String("hook", string(hctx.Hook)))
		return exitcode.Success
	}
	if opts.Fix {
		stages = r.applyFixOverride(stages)
	}
	r.stages.SetConcurrency(opts.Workers)

	start := time.Now()
	outcome, err := r.stages.Run(ctx, hctx, stages)
	if err != nil {
		var cfgErr *stage.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Error("invalid stage graph", logger.Err(err))
			return exitcode.ConfigError
		}
		logger.Error("hook run failed", logger.Err(err))
		return exitcode.GeneralError
	}

	rep := &Report{
		Tool:    "latch",
		Version: r.version,
		Hook:    hctx.Hook,
		Target:  hctx.ProjectRoot,
		Branch:  hctx.Branch,
		SHA:     hctx.SHA,
		Elapsed: time.Since(start),
		Outcome: outcome,
	}
	if opts.Out != nil {
		var renderErr error
		if opts.JSON {
			renderErr = rep.RenderJSON(opts.Out)
		} else {
			renderErr = rep.RenderConcise(opts.Out, opts.NoColor)
		}
		if renderErr != nil {
			logger.Error("rendering report", logger.Err(renderErr))
			return exitcode.GeneralError
		}
	}

	return exitFor(outcome)
}

func exitFor(outcome *stage.Outcome) int {
	if outcome.Success {
		return exitcode.Success
	}
	if len(outcome.Blocked) > 0 {
		return exitcode.BlockedGraph
	}
	return exitcode.CheckFailure
}

// BuildRegistry constructs the built-in tasks from settings plus any shell
// tasks the manifest declares.
func BuildRegistry(settings *config.Settings, m *config.Manifest) (*task.Registry, error) {
	reg := task.NewRegistry()
	builtins := []task.HookTask{
		task.NewFormatTask(settings.FormatConfig(), nil, nil),
		task.NewBuildTask(settings.BuildConfig(), nil, nil),
		task.NewTestTask(settings.TestConfig(), nil, nil),
		task.NewUnusedTask(settings.UnusedConfig(), nil, nil),
		task.NewDuplicatesTask(settings.DuplicatesConfig(), nil, nil),
		task.NewVersionSyncTask(settings.VersionSyncConfig()),
	}
	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	if m != nil {
		shells, err := m.ShellTasks()
		if err != nil {
			return nil, err
		}
		for _, cfg := range shells {
			sh, err := task.NewShellTask(cfg, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("shell task %q: %w", cfg.ID, err)
			}
			if err := reg.Register(sh); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}
