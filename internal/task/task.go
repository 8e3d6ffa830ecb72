// Package task defines the unit of work executed inside a stage: one
// checkable, optionally fixable property of the project.
package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/latchhq/latch/internal/hook"
)

// FixSafety classifies how aggressive a task's fix path is.
type FixSafety string

const (
	// FixSafe fixes are mechanical and always content-preserving (formatters).
	FixSafe FixSafety = "safe"
	// FixCautious fixes may change behavior and deserve review before commit.
	FixCautious FixSafety = "cautious"
)

// HookTask is one checkable/fixable property of the project. Implementations
// are immutable configuration built at startup; Run must be safe to call
// concurrently with other tasks' Run.
type HookTask interface {
	// ID uniquely identifies the task within a registry.
	ID() string
	// Name is the human-readable task name for reports.
	Name() string
	// Hooks lists the lifecycle points this task participates in. Never empty.
	Hooks() []hook.Type
	// Blocking reports whether a failure of this task fails its stage.
	Blocking() bool
	// SupportsFix reports whether Fix may be requested for this task.
	SupportsFix() bool
	// FixSafety classifies the fix path. Meaningless when SupportsFix is false.
	FixSafety() FixSafety
	// FilePatterns scopes changed/diff runs to matching files.
	FilePatterns() []string

	// Run checks the project and reports findings. A missing underlying tool
	// degrades to a skipped result, never an error.
	Run(ctx context.Context, hctx *hook.Context) Result

	// Fix repairs findings best-effort. Only called when SupportsFix is true.
	// Must be idempotent: fixing an already-clean tree yields an empty FixResult.
	Fix(ctx context.Context, hctx *hook.Context) FixResult
}

// Meta carries the static metadata shared by every built-in task. Embed it and
// configure the fields at construction time.
type Meta struct {
	TaskID       string
	TaskName     string
	HookTypes    []hook.Type
	IsBlocking   bool
	Fixable      bool
	Safety       FixSafety
	Patterns     []string
	ParseOutput  bool // keep unmatched tool output lines as message-only diagnostics
	Required     bool // a missing tool fails the task instead of skipping it
}

func (m Meta) ID() string              { return m.TaskID }
func (m Meta) Name() string            { return m.TaskName }
func (m Meta) Hooks() []hook.Type      { return m.HookTypes }
func (m Meta) Blocking() bool          { return m.IsBlocking }
func (m Meta) SupportsFix() bool       { return m.Fixable }
func (m Meta) FixSafety() FixSafety    { return m.Safety }
func (m Meta) FilePatterns() []string  { return m.Patterns }

// Registry maps task ids to task instances. It is built once at startup and
// passed into the runner explicitly so independent scheduler instances never
// share state.
type Registry struct {
	tasks map[string]HookTask
	order []string
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]HookTask)}
}

// Register adds a task. Duplicate ids and empty hook sets are rejected.
func (r *Registry) Register(t HookTask) error {
	id := t.ID()
	if id == "" {
		return fmt.Errorf("task has empty id")
	}
	if len(t.Hooks()) == 0 {
		return fmt.Errorf("task %q declares no hooks", id)
	}
	if _, exists := r.tasks[id]; exists {
		return fmt.Errorf("task %q already registered", id)
	}
	r.tasks[id] = t
	r.order = append(r.order, id)
	return nil
}

// Resolve looks up a task by id.
func (r *Registry) Resolve(id string) (HookTask, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// IDs returns registered task ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ForHook returns the ids of tasks eligible for a lifecycle point, sorted for
// stable default stage construction.
func (r *Registry) ForHook(ht hook.Type) []string {
	var out []string
	for id, t := range r.tasks {
		for _, h := range t.Hooks() {
			if h == ht {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
