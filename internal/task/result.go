package task

import "time"

// Severity classifies a diagnostic finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one normalized finding parsed from task or subprocess output.
// Line and Column are 1-based; zero means "no location" and a diagnostic never
// carries a line without a file.
type Diagnostic struct {
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Rule     string   `json:"rule,omitempty"`
	Fixable  bool     `json:"fixable"`
}

// HasLocation reports whether the diagnostic points at a source position.
func (d Diagnostic) HasLocation() bool {
	return d.File != "" && d.Line > 0
}

// Status is the outcome of running one task.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one task invocation. Diagnostics keep discovery
// order so reports are stable under concurrency.
type Result struct {
	Status         Status        `json:"status"`
	Diagnostics    []Diagnostic  `json:"diagnostics,omitempty"`
	Duration       time.Duration `json:"duration"`
	FilesChecked   int           `json:"files_checked"`
	FixesAvailable bool          `json:"fixes_available"`
	SkipReason     string        `json:"skip_reason,omitempty"`
}

// FixResult is the outcome of a fix attempt. A partially failed fix still
// returns a FixResult with its errors recorded; it never aborts the stage.
type FixResult struct {
	FilesModified []string `json:"files_modified,omitempty"`
	FixesApplied  int      `json:"fixes_applied"`
	Errors        []string `json:"errors,omitempty"`
}

// Skipped builds a skipped result carrying only the reason.
func Skipped(reason string, elapsed time.Duration) Result {
	return Result{Status: StatusSkipped, SkipReason: reason, Duration: elapsed}
}

// Finalize derives the result status from collected diagnostics: failed when a
// blocking task found error-severity diagnostics, warning when only softer
// findings exist.
func Finalize(diags []Diagnostic, blocking bool, checked int, elapsed time.Duration) Result {
	res := Result{
		Status:       StatusPassed,
		Diagnostics:  diags,
		Duration:     elapsed,
		FilesChecked: checked,
	}
	hasError := false
	for _, d := range diags {
		if d.Fixable {
			res.FixesAvailable = true
		}
		if d.Severity == SeverityError {
			hasError = true
		}
	}
	switch {
	case hasError && blocking:
		res.Status = StatusFailed
	case len(diags) > 0:
		res.Status = StatusWarning
	}
	return res
}
