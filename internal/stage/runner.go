package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/internal/task"
	"github.com/latchhq/latch/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Runner resolves the dependency graph among stages and executes ready waves
// concurrently, with a barrier between waves. Run works exclusively on its
// inputs, so independent runners can execute concurrently.
type Runner struct {
	registry *task.Registry
	sem      chan struct{}
}

// NewRunner creates a stage runner over a task registry.
func NewRunner(registry *task.Registry) *Runner {
	return &Runner{registry: registry}
}

// SetConcurrency caps how many tasks execute at once across all stages of a
// run. Zero or a negative count removes the cap. Not safe to call while a
// Run is in flight.
func (r *Runner) SetConcurrency(workers int) {
	if workers <= 0 {
		r.sem = nil
		return
	}
	r.sem = make(chan struct{}, workers)
}

// acquire takes a task slot and returns its release. Stages only hold slots
// while a task body runs, never while waiting on other goroutines, so the
// semaphore cannot deadlock the wave barrier.
func (r *Runner) acquire() func() {
	if r.sem == nil {
		return func() {}
	}
	r.sem <- struct{}{}
	return func() { <-r.sem }
}

// Run validates the stage set and executes it to completion or to the first
// blocking failure. Structural problems return a *ConfigError before any task
// runs; task and stage failures are reported through the Outcome.
func (r *Runner) Run(ctx context.Context, hctx *hook.Context, stages []Stage) (*Outcome, error) {
	if err := Validate(stages); err != nil {
		return nil, err
	}

	pending := make(map[string]Stage, len(stages))
	order := make([]string, 0, len(stages))
	for _, s := range stages {
		pending[s.Name] = s
		order = append(order, s.Name)
	}
	completed := make(map[string]Result, len(stages))

	outcome := &Outcome{Success: true}
	failedHard := false

	for len(pending) > 0 {
		ready := r.readyWave(order, pending, completed)
		if len(ready) == 0 {
			// Every remaining stage waits on a prerequisite that failed or
			// never ran. Report them and end the run.
			outcome.Blocked = r.blockedStages(order, pending, completed)
			outcome.Success = false
			break
		}

		logger.Debug("executing stage wave", logger.Int("stages", len(ready)))

		// All stages of a wave run concurrently; the wave is a barrier.
		results := make([]Result, len(ready))
		var g errgroup.Group
		for i, st := range ready {
			g.Go(func() error {
				results[i] = r.runStage(ctx, hctx, st)
				return nil
			})
		}
		_ = g.Wait()

		for i, st := range ready {
			res := results[i]
			completed[st.Name] = res
			delete(pending, st.Name)
			outcome.Stages = append(outcome.Stages, res)
			if !res.Success {
				if res.ContinueOnError {
					logger.Warn("stage failed but continues", logger.String("stage", st.Name))
					continue
				}
				outcome.Success = false
				failedHard = true
			}
		}

		// Fail fast at the barrier boundary: nothing further starts, not even
		// stages unrelated to the failure.
		if failedHard {
			outcome.Blocked = r.blockedStages(order, pending, completed)
			break
		}
	}

	return outcome, nil
}

// readyWave returns pending stages whose dependencies all completed and
// either succeeded or declared continueOnError, in declaration order.
func (r *Runner) readyWave(order []string, pending map[string]Stage, completed map[string]Result) []Stage {
	var ready []Stage
	for _, name := range order {
		st, ok := pending[name]
		if !ok {
			continue
		}
		satisfied := true
		for _, dep := range st.Dependencies {
			res, done := completed[dep]
			if !done || (!res.Success && !res.ContinueOnError) {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, st)
		}
	}
	return ready
}

// blockedStages explains why each still-pending stage will never run.
func (r *Runner) blockedStages(order []string, pending map[string]Stage, completed map[string]Result) []Blocked {
	var blocked []Blocked
	for _, name := range order {
		st, ok := pending[name]
		if !ok {
			continue
		}
		blocked = append(blocked, Blocked{Name: name, Reason: r.blockReason(st, completed)})
	}
	return blocked
}

func (r *Runner) blockReason(st Stage, completed map[string]Result) string {
	for _, dep := range st.Dependencies {
		if res, done := completed[dep]; done && !res.Success && !res.ContinueOnError {
			return fmt.Sprintf("blocked by %s", dep)
		}
	}
	for _, dep := range st.Dependencies {
		if _, done := completed[dep]; !done {
			return fmt.Sprintf("blocked by %s, which never ran", dep)
		}
	}
	return "blocked by an earlier failure"
}

// runStage executes one stage's task references according to its parallel
// flag. Task results keep declaration order so reports stay deterministic.
func (r *Runner) runStage(ctx context.Context, hctx *hook.Context, st Stage) Result {
	start := time.Now()
	logger.Debug("running stage", logger.String("stage", st.Name), logger.Bool("parallel", st.Parallel))

	// Resolve every reference up front. A stage that names a missing task is
	// misconfigured and must fail loudly: silently omitting a check would be
	// a safety regression.
	resolved := make([]task.HookTask, len(st.Tasks))
	prechecked := make([]TaskRunResult, len(st.Tasks))
	misconfigured := false
	for i, ref := range st.Tasks {
		t, ok := r.registry.Resolve(ref.ID)
		if !ok {
			prechecked[i] = misconfiguredTask(ref, fmt.Sprintf("no registered task with id %q", ref.ID))
			misconfigured = true
			continue
		}
		if ref.Mode != ModeCheck && !t.SupportsFix() {
			prechecked[i] = misconfiguredTask(ref, fmt.Sprintf("task %q does not support fix mode", ref.ID))
			misconfigured = true
			continue
		}
		resolved[i] = t
	}
	if misconfigured {
		for i, ref := range st.Tasks {
			if resolved[i] != nil {
				prechecked[i] = TaskRunResult{
					TaskID: ref.ID,
					Mode:   ref.Mode,
					Result: task.Skipped("stage misconfigured", 0),
				}
			}
		}
		return Result{
			Name:            st.Name,
			Tasks:           prechecked,
			Success:         false,
			ContinueOnError: st.ContinueOnError,
			Duration:        time.Since(start),
		}
	}

	results := make([]TaskRunResult, len(st.Tasks))
	if st.Parallel {
		// Every sibling runs to completion; one failure does not cancel the
		// others, their results are still collected.
		var g errgroup.Group
		for i, ref := range st.Tasks {
			g.Go(func() error {
				release := r.acquire()
				defer release()
				results[i] = r.executeRef(ctx, hctx, resolved[i], ref)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		halted := false
		for i, ref := range st.Tasks {
			if halted {
				results[i] = TaskRunResult{
					TaskID: ref.ID,
					Mode:   ref.Mode,
					Result: task.Skipped("blocked by prior task failure", 0),
				}
				continue
			}
			release := r.acquire()
			results[i] = r.executeRef(ctx, hctx, resolved[i], ref)
			release()
			if results[i].Result.Status == task.StatusFailed && resolved[i].Blocking() && !st.ContinueOnError {
				halted = true
			}
		}
	}

	success := true
	for _, tr := range results {
		if tr.Result.Status == task.StatusFailed {
			success = false
			break
		}
	}
	res := Result{
		Name:            st.Name,
		Tasks:           results,
		Success:         success,
		ContinueOnError: st.ContinueOnError,
		Duration:        time.Since(start),
	}
	logger.Debug("stage finished", logger.String("stage", st.Name), logger.Bool("success", success), logger.Duration("duration", res.Duration))
	return res
}

// executeRef runs one task reference in its requested mode.
func (r *Runner) executeRef(ctx context.Context, hctx *hook.Context, t task.HookTask, ref TaskRef) TaskRunResult {
	switch ref.Mode {
	case ModeFix:
		// Fix is best-effort; the subsequent check is what surfaces whatever
		// the fix could not repair.
		fix := t.Fix(ctx, hctx)
		res := t.Run(ctx, hctx)
		return TaskRunResult{TaskID: ref.ID, Mode: ref.Mode, Result: res, Fix: &fix}

	case ModeFixOnly:
		start := time.Now()
		fix := t.Fix(ctx, hctx)
		res := task.Result{
			Status:       task.StatusPassed,
			Duration:     time.Since(start),
			FilesChecked: len(fix.FilesModified),
		}
		if len(fix.Errors) > 0 {
			res.Status = task.StatusFailed
			for _, msg := range fix.Errors {
				res.Diagnostics = append(res.Diagnostics, task.Diagnostic{
					Severity: task.SeverityError,
					Message:  msg,
				})
			}
		}
		return TaskRunResult{TaskID: ref.ID, Mode: ref.Mode, Result: res, Fix: &fix}

	default:
		return TaskRunResult{TaskID: ref.ID, Mode: ref.Mode, Result: t.Run(ctx, hctx)}
	}
}

func misconfiguredTask(ref TaskRef, msg string) TaskRunResult {
	return TaskRunResult{
		TaskID: ref.ID,
		Mode:   ref.Mode,
		Result: task.Result{
			Status: task.StatusFailed,
			Diagnostics: []task.Diagnostic{{
				Severity: task.SeverityError,
				Message:  msg,
			}},
		},
	}
}
