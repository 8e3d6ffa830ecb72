package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/internal/stage"
	"github.com/latchhq/latch/internal/task"
	"github.com/mattn/go-runewidth"
)

// Report is the rendered view of one hook run.
type Report struct {
	Tool    string         `json:"tool"`
	Version string         `json:"version"`
	Hook    hook.Type      `json:"hook"`
	Target  string         `json:"target"`
	Branch  string         `json:"branch,omitempty"`
	SHA     string         `json:"sha,omitempty"`
	Elapsed time.Duration  `json:"elapsed_ns"`
	Outcome *stage.Outcome `json:"outcome"`
}

// RenderJSON writes the report as indented JSON.
func (r *Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderConcise writes the short, hook-log-friendly report: one header line,
// one block per stage with one aligned line per task, diagnostics indented
// under their task, and the blocked list when the graph stalled. Colors are
// suppressed when noColor is set or the NO_COLOR convention is in effect.
func (r *Report) RenderConcise(w io.Writer, noColor bool) error {
	plain := noColor || os.Getenv("NO_COLOR") != ""
	color := func(code, s string) string {
		if plain {
			return s
		}
		return "\x1b[" + code + "m" + s + "\x1b[0m"
	}
	bold := func(s string) string { return color("1", s) }
	green := func(s string) string { return color("32", s) }
	yellow := func(s string) string { return color("33", s) }
	red := func(s string) string { return color("31", s) }

	var sb strings.Builder

	meta := ""
	if r.Branch != "" {
		meta = " | " + r.Branch
		if len(r.SHA) >= 8 {
			meta += "@" + r.SHA[:8]
		}
	}
	fmt.Fprintf(&sb, "%s %s (%s)%s | time: %s\n",
		bold(r.Tool), r.Version, r.Hook, meta, formatDuration(r.Elapsed))

	label := func(tr stage.TaskRunResult) string {
		if tr.Mode != stage.ModeCheck {
			return fmt.Sprintf("%s (%s)", tr.TaskID, tr.Mode)
		}
		return tr.TaskID
	}
	width := 0
	for _, st := range r.Outcome.Stages {
		for _, tr := range st.Tasks {
			if w := runewidth.StringWidth(label(tr)); w > width {
				width = w
			}
		}
	}

	for _, st := range r.Outcome.Stages {
		verdict := green("ok")
		if !st.Success {
			verdict = red("failed")
			if st.ContinueOnError {
				verdict = yellow("failed (continues)")
			}
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n", bold("stage"), st.Name, verdict)

		for _, tr := range st.Tasks {
			status := statusWord(tr.Result.Status, green, yellow, red)
			fmt.Fprintf(&sb, "  %s  %s  %s\n",
				runewidth.FillRight(label(tr), width), status, formatDuration(tr.Result.Duration))
			if tr.Result.Status == task.StatusSkipped && tr.Result.SkipReason != "" {
				fmt.Fprintf(&sb, "    %s\n", tr.Result.SkipReason)
			}
			if tr.Fix != nil && tr.Fix.FixesApplied > 0 {
				if n := len(tr.Fix.FilesModified); n > 0 {
					fmt.Fprintf(&sb, "    fixed %d file(s)\n", n)
				} else {
					fmt.Fprintf(&sb, "    applied %d fix(es)\n", tr.Fix.FixesApplied)
				}
			}
			for _, d := range tr.Result.Diagnostics {
				fmt.Fprintf(&sb, "    %s\n", formatDiagnostic(d))
			}
		}
	}

	if len(r.Outcome.Blocked) > 0 {
		fmt.Fprintf(&sb, "%s\n", red("blocked stages:"))
		for _, b := range r.Outcome.Blocked {
			fmt.Fprintf(&sb, "  %s: %s\n", b.Name, b.Reason)
		}
	}

	if r.Outcome.Success {
		sb.WriteString(green("hook passed") + "\n")
	} else {
		sb.WriteString(red("hook failed") + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func statusWord(s task.Status, green, yellow, red func(string) string) string {
	switch s {
	case task.StatusPassed:
		return green("passed")
	case task.StatusWarning:
		return yellow("warning")
	case task.StatusSkipped:
		return yellow("skipped")
	default:
		return red("failed")
	}
}

// formatDiagnostic renders path:line:col: severity: message, degrading to
// severity: message when the diagnostic carries no location.
func formatDiagnostic(d task.Diagnostic) string {
	if d.HasLocation() {
		if d.Column > 0 {
			return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
		}
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return "<1ms"
	}
}
