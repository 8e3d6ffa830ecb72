// Package hook defines the invocation context shared by every task in a run.
package hook

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Type identifies a lifecycle point a hook run is triggered from.
type Type string

const (
	PreCommit Type = "pre-commit"
	PrePush   Type = "pre-push"
	CI        Type = "ci"
)

// ParseType converts a lifecycle name into a Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case PreCommit:
		return PreCommit, nil
	case PrePush:
		return PrePush, nil
	case CI:
		return CI, nil
	default:
		return "", fmt.Errorf("unknown hook type %q (expected pre-commit, pre-push, or ci)", s)
	}
}

// Scope determines which file set tasks consider during a run.
type Scope string

const (
	ScopeStaged  Scope = "staged"
	ScopeChanged Scope = "changed"
	ScopeDiff    Scope = "diff"
	ScopeAll     Scope = "all"
)

// ParseScope converts a scope name into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeStaged:
		return ScopeStaged, nil
	case ScopeChanged:
		return ScopeChanged, nil
	case ScopeDiff:
		return ScopeDiff, nil
	case ScopeAll:
		return ScopeAll, nil
	default:
		return "", fmt.Errorf("unknown scope %q (expected staged, changed, diff, or all)", s)
	}
}

// File describes one file relevant to a run. Path is relative to the project
// root. Content is the staged content handle when the file came from the git
// index; nil otherwise.
type File struct {
	Path    string
	Content []byte
}

// Context is the immutable invocation context for one hook run. It is built
// once at startup and shared read-only across concurrently running tasks.
type Context struct {
	ProjectRoot string
	Hook        Type
	Scope       Scope
	StagedFiles []File
	AllFiles    []File
	Verbose     bool

	// Branch and SHA are best-effort git metadata for the report.
	Branch string
	SHA    string
}

// ScopedFiles returns the file set selected by the context scope. Staged and
// diff scopes use the staged set; changed and all use the full set (changed is
// narrowed per task via FilesMatching).
func (c *Context) ScopedFiles() []File {
	switch c.Scope {
	case ScopeStaged, ScopeDiff:
		return c.StagedFiles
	default:
		return c.AllFiles
	}
}

// FilesMatching filters the scoped file set by glob patterns. An empty pattern
// list matches everything.
func (c *Context) FilesMatching(patterns []string) []File {
	files := c.ScopedFiles()
	if len(patterns) == 0 {
		return files
	}
	var out []File
	for _, f := range files {
		for _, p := range patterns {
			if ok, err := doublestar.Match(p, filepath.ToSlash(f.Path)); err == nil && ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// AbsPath joins a context-relative path onto the project root.
func (c *Context) AbsPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.ProjectRoot, rel)
}
