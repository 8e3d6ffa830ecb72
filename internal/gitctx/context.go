package gitctx

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/pkg/logger"
)

// BuildContext assembles the immutable hook context for one run. The staged
// set comes from the git index; the wide set depends on scope: changed uses
// the working-tree change list, all uses every tracked file. Outside a git
// repository the staged and changed sets are empty and "all" degrades to a
// filesystem walk.
func BuildContext(root string, ht hook.Type, scope hook.Scope, verbose bool) *hook.Context {
	hctx := &hook.Context{
		ProjectRoot: root,
		Hook:        ht,
		Scope:       scope,
		Verbose:     verbose,
	}

	info := Collect(root)
	if info == nil {
		logger.Debug("no git repository detected", logger.String("root", root))
		if scope != hook.ScopeStaged && scope != hook.ScopeDiff {
			hctx.AllFiles = walkFiles(root)
		}
		return hctx
	}

	hctx.Branch = info.Branch
	hctx.SHA = info.SHA
	hctx.StagedFiles = info.Staged

	switch scope {
	case hook.ScopeChanged:
		for _, p := range info.Changed {
			hctx.AllFiles = append(hctx.AllFiles, hook.File{Path: p})
		}
	case hook.ScopeAll:
		for _, p := range TrackedFiles(root) {
			hctx.AllFiles = append(hctx.AllFiles, hook.File{Path: p})
		}
	}
	return hctx
}

// walkFiles lists project files when no repository is available, skipping
// dot-directories and common dependency trees.
func walkFiles(root string) []hook.File {
	var files []hook.File
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		files = append(files, hook.File{Path: filepath.ToSlash(rel)})
		return nil
	})
	return files
}
