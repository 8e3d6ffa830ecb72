// Package stage models named groups of tasks and executes them as a
// dependency graph with wave barriers.
package stage

import (
	"fmt"
	"strings"
	"time"

	"github.com/latchhq/latch/internal/task"
)

// TaskMode selects what the scheduler asks of a task reference. The mode is
// attached to the reference inside a stage, not to the task: the same task can
// run in check mode in one stage and fix mode in another.
type TaskMode string

const (
	// ModeCheck runs the task's check only.
	ModeCheck TaskMode = "check"
	// ModeFix runs the fix best-effort, then the check to re-validate.
	ModeFix TaskMode = "fix"
	// ModeFixOnly runs the fix and synthesizes a result from it.
	ModeFixOnly TaskMode = "fixOnly"
)

// ParseMode converts a manifest mode string into a TaskMode.
func ParseMode(s string) (TaskMode, error) {
	switch strings.TrimSpace(s) {
	case "", "check":
		return ModeCheck, nil
	case "fix":
		return ModeFix, nil
	case "fixOnly", "fix-only":
		return ModeFixOnly, nil
	default:
		return "", fmt.Errorf("unknown task mode %q (expected check, fix, or fixOnly)", s)
	}
}

// TaskRef names a task inside a stage together with its execution mode.
type TaskRef struct {
	ID   string
	Mode TaskMode
}

// Stage is a named, schedulable unit: an ordered task list, a parallel flag,
// dependencies on other stages, and a continue-on-error flag. The dependency
// relation across all stages of a run must form a DAG.
type Stage struct {
	Name            string
	Tasks           []TaskRef
	Parallel        bool
	Dependencies    []string
	ContinueOnError bool
}

// TaskRunResult is the recorded outcome of one task reference in a stage.
type TaskRunResult struct {
	TaskID string          `json:"task_id"`
	Mode   TaskMode        `json:"mode"`
	Result task.Result     `json:"result"`
	Fix    *task.FixResult `json:"fix,omitempty"`
}

// Result is the outcome of one executed stage. Task results keep declaration
// order regardless of completion order.
type Result struct {
	Name            string          `json:"name"`
	Tasks           []TaskRunResult `json:"tasks"`
	Success         bool            `json:"success"`
	ContinueOnError bool            `json:"continue_on_error"`
	Duration        time.Duration   `json:"duration"`
}

// Blocked describes a stage that never ran because a prerequisite failed.
type Blocked struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Outcome aggregates a whole run: executed stages in completion-wave order,
// stages that never ran, and the overall verdict. Success is true when every
// executed stage either succeeded or declared continueOnError, and nothing
// was left blocked.
type Outcome struct {
	Stages  []Result  `json:"stages"`
	Blocked []Blocked `json:"blocked,omitempty"`
	Success bool      `json:"success"`
}

// ConfigError marks a problem with the stage set itself (cycle, missing
// dependency, duplicate name). It is detected before any task runs.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a stage set: unique names,
// dependencies that exist, and an acyclic graph. Execution must not begin
// when Validate fails.
func Validate(stages []Stage) error {
	byName := make(map[string]*Stage, len(stages))
	for i := range stages {
		s := &stages[i]
		if s.Name == "" {
			return configErrorf("stage %d has no name", i)
		}
		if _, dup := byName[s.Name]; dup {
			return configErrorf("duplicate stage name %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range stages {
		for _, dep := range s.Dependencies {
			if dep == s.Name {
				return configErrorf("stage %q depends on itself", s.Name)
			}
			if _, ok := byName[dep]; !ok {
				return configErrorf("stage %q depends on unknown stage %q", s.Name, dep)
			}
		}
	}
	return detectCycle(stages, byName)
}

// detectCycle runs a three-color DFS over the dependency edges.
func detectCycle(stages []Stage, byName map[string]*Stage) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(stages))

	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch color[name] {
		case gray:
			return configErrorf("dependency cycle involving stages %s", strings.Join(append(trail, name), " -> "))
		case black:
			return nil
		}
		color[name] = gray
		for _, dep := range byName[name].Dependencies {
			if err := visit(dep, append(trail, name)); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, s := range stages {
		if err := visit(s.Name, nil); err != nil {
			return err
		}
	}
	return nil
}
