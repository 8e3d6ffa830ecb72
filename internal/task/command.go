package task

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/latchhq/latch/pkg/logger"
)

// ExecutableResolver resolves a tool name to a runnable path. The default
// resolver consults PATH; alternative resolvers may download and cache
// binaries, which is outside the scheduler's concern.
type ExecutableResolver interface {
	Resolve(tool string) (string, error)
}

// PathResolver resolves tools via the process PATH.
type PathResolver struct{}

func (PathResolver) Resolve(tool string) (string, error) {
	return exec.LookPath(tool)
}

// ProcessResult captures the outcome of a subprocess invocation.
type ProcessResult struct {
	Output   string
	ExitCode int
}

// LineStream tags a streamed output line with its origin.
type LineStream string

const (
	StreamStdout LineStream = "stdout"
	StreamStderr LineStream = "stderr"
)

// ProcessRunner invokes external executables. Run captures combined output;
// Stream additionally delivers each line to onLine as it arrives (verbose
// mode). A non-zero exit status is reported through ExitCode, not an error;
// the returned error is reserved for failures to launch or wait.
type ProcessRunner interface {
	Run(ctx context.Context, executable string, args []string, cwd string) (ProcessResult, error)
	Stream(ctx context.Context, executable string, args []string, cwd string, onLine func(LineStream, string)) (ProcessResult, error)
}

// ExecRunner runs subprocesses with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, executable string, args []string, cwd string) (ProcessResult, error) {
	// #nosec G204 -- executables and args come from the checked-in hook
	// manifest, which has the same trust level as a Makefile.
	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	res := ProcessResult{Output: string(out)}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// Stream drains stdout and stderr on separate goroutines. Both pipes must be
// read concurrently: a full OS pipe buffer would otherwise block the child
// while this process waits on the other pipe.
func (ExecRunner) Stream(ctx context.Context, executable string, args []string, cwd string, onLine func(LineStream, string)) (ProcessResult, error) {
	// #nosec G204 -- see Run
	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ProcessResult{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ProcessResult{}, err
	}
	if err := cmd.Start(); err != nil {
		return ProcessResult{}, err
	}

	var mu sync.Mutex
	var combined strings.Builder
	var wg sync.WaitGroup
	drain := func(r io.Reader, stream LineStream) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			combined.WriteString(line)
			combined.WriteByte('\n')
			mu.Unlock()
			if onLine != nil {
				onLine(stream, line)
			}
		}
		if serr := scanner.Err(); serr != nil {
			// The pipe must stay drained until EOF or the child blocks on a
			// full buffer and never exits.
			_, _ = io.Copy(io.Discard, r)
			note := fmt.Sprintf("[%s truncated: %v]", stream, serr)
			mu.Lock()
			combined.WriteString(note)
			combined.WriteByte('\n')
			mu.Unlock()
			if onLine != nil {
				onLine(stream, note)
			}
		}
	}
	wg.Add(2)
	go drain(stdout, StreamStdout)
	go drain(stderr, StreamStderr)
	wg.Wait()

	res := ProcessResult{}
	err = cmd.Wait()
	res.Output = combined.String()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// diagnosticLine matches the common tool output shape
// <path>:<line>:<col>: <severity>: <message>. The column segment is optional.
var diagnosticLine = regexp.MustCompile(`^(.+?):(\d+)(?::(\d+))?:\s*(error|warning|note)\s*:\s*(.+)$`)

// locatedLine matches tools that omit the severity token (staticcheck,
// golangci-lint). Such findings are reported at warning strength.
var locatedLine = regexp.MustCompile(`^(.+?\.\w+):(\d+)(?::(\d+))?:\s*(.+)$`)

// ParseDiagnostics turns raw tool output into diagnostics. Lines carrying a
// source location are always kept, with or without a severity token; other
// lines are dropped, or kept as message-only diagnostics when keepUnmatched
// is set. Parsing is tolerant: it never fails.
func ParseDiagnostics(output string, keepUnmatched bool, fixable bool) []Diagnostic {
	var diags []Diagnostic
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if d, ok := parseLocatedLine(line); ok {
			d.Fixable = fixable
			diags = append(diags, d)
			continue
		}
		if keepUnmatched {
			diags = append(diags, Diagnostic{
				Severity: SeverityInfo,
				Message:  strings.TrimSpace(line),
				Fixable:  fixable,
			})
		}
	}
	return diags
}

func parseLocatedLine(line string) (Diagnostic, bool) {
	if m := diagnosticLine.FindStringSubmatch(line); m != nil {
		return Diagnostic{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Severity: parseSeverity(m[4]),
			Message:  strings.TrimSpace(m[5]),
		}, true
	}
	if m := locatedLine.FindStringSubmatch(line); m != nil {
		return Diagnostic{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Severity: SeverityWarning,
			Message:  strings.TrimSpace(m[4]),
		}, true
	}
	return Diagnostic{}, false
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func parseSeverity(s string) Severity {
	switch s {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	default: // "note"
		return SeverityInfo
	}
}

// verboseLineLogger returns the per-line callback for verbose runs, or nil.
func verboseLineLogger(verbose bool, taskID string) func(LineStream, string) {
	if !verbose {
		return nil
	}
	return func(stream LineStream, line string) {
		logger.Info(line, logger.String("task", taskID), logger.String("stream", string(stream)))
	}
}
