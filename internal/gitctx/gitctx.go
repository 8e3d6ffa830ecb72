// Package gitctx discovers the git change-set a hook run operates on.
package gitctx

import (
	"bufio"
	"bytes"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/pkg/logger"
)

// Info is a snapshot of the repository state at hook time: the staged file
// set (with index content when available), the wider changed set, and
// best-effort branch/SHA metadata for the report.
type Info struct {
	Branch  string
	SHA     string
	Staged  []hook.File
	Changed []string
}

// Collect gathers change info for the repo containing root. go-git is tried
// first; the git CLI is the fallback. Returns nil when neither can see a
// repository, which callers treat as "no git context", not an error.
func Collect(root string) *Info {
	if info := collectGoGit(root); info != nil {
		return info
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil
	}
	if !isRepoCLI(root) {
		return nil
	}
	return collectCLI(root)
}

func collectGoGit(root string) *Info {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}
	info, err := FromRepository(repo)
	if err != nil {
		logger.Debug("go-git collection failed, falling back", logger.Err(err))
		return nil
	}
	return info
}

// FromRepository builds change info from an already-open repository. Split
// out from Collect so tests can drive it with in-memory repositories.
func FromRepository(repo *git.Repository) (*Info, error) {
	info := &Info{}
	if head, err := repo.Head(); err == nil {
		info.Branch = head.Name().Short()
		info.SHA = head.Hash().String()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	var stagedPaths []string
	changed := make(map[string]struct{})
	for path, st := range status {
		if st.Staging != git.Unmodified && st.Staging != git.Untracked {
			stagedPaths = append(stagedPaths, filepath.ToSlash(path))
		}
		if st.Staging != git.Unmodified || st.Worktree != git.Unmodified {
			changed[filepath.ToSlash(path)] = struct{}{}
		}
	}
	sort.Strings(stagedPaths)
	for _, p := range stagedPaths {
		info.Staged = append(info.Staged, hook.File{Path: p, Content: indexContent(repo, p)})
	}
	for p := range changed {
		info.Changed = append(info.Changed, p)
	}
	sort.Strings(info.Changed)
	return info, nil
}

// indexContent reads the staged blob for path from the index. Best effort: a
// nil return means the caller falls back to the worktree copy.
func indexContent(repo *git.Repository, path string) []byte {
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil
	}
	entry, err := idx.Entry(path)
	if err != nil {
		return nil
	}
	blob, err := repo.BlobObject(entry.Hash)
	if err != nil {
		return nil
	}
	r, err := blob.Reader()
	if err != nil {
		return nil
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return data
}

func collectCLI(root string) *Info {
	info := &Info{
		Branch: runGit(root, "rev-parse", "--abbrev-ref", "HEAD"),
		SHA:    runGit(root, "rev-parse", "HEAD"),
	}
	for _, p := range scanLines(runGitBytes(root, "diff", "--cached", "--name-only")) {
		content := runGitBytes(root, "show", ":"+p)
		info.Staged = append(info.Staged, hook.File{Path: filepath.ToSlash(p), Content: content})
	}
	changed := make(map[string]struct{})
	for _, f := range info.Staged {
		changed[f.Path] = struct{}{}
	}
	for _, p := range scanLines(runGitBytes(root, "diff", "--name-only")) {
		changed[filepath.ToSlash(p)] = struct{}{}
	}
	for p := range changed {
		info.Changed = append(info.Changed, p)
	}
	sort.Strings(info.Changed)
	return info
}

// TrackedFiles lists every path known to the repository head plus untracked
// changes, relative to the repo root. Used for the "all" scope.
func TrackedFiles(root string) []string {
	if repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		if files, err := trackedFromRepo(repo); err == nil {
			return files
		}
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil
	}
	return scanLines(runGitBytes(root, "ls-files", "--cached", "--others", "--exclude-standard"))
}

func trackedFromRepo(repo *git.Repository) ([]string, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	var files []string
	walker := tree.Files()
	defer walker.Close()
	for {
		f, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		files = append(files, filepath.ToSlash(f.Name))
	}
	sort.Strings(files)
	return files, nil
}

func isRepoCLI(root string) bool {
	return runGit(root, "rev-parse", "--is-inside-work-tree") == "true"
}

func runGit(dir string, args ...string) string {
	return strings.TrimSpace(string(runGitBytes(dir, args...)))
}

func runGitBytes(dir string, args ...string) []byte {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, _ := cmd.Output()
	return out
}

func scanLines(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
