// Package hookgen generates, installs, and removes the git hook scripts that
// delegate to latch.
package hookgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/latchhq/latch/pkg/logger"
)

// Hooks lists the git lifecycle points latch generates scripts for. The ci
// lifecycle has no git hook; it is invoked directly by pipelines.
var Hooks = []string{"pre-commit", "pre-push"}

const marker = "Generated by latch"

const scriptTemplate = `#!/bin/sh
# {{marker}} {{version}}. Do not edit; regenerate with "latch hooks generate".
set -e

if ! command -v latch >/dev/null 2>&1; then
    echo "latch not found; skipping {{hook}} checks"
    echo "install latch to restore hook validation"
    exit 0
fi

exec latch run {{hook}}
`

const starterManifest = `version: "1.0.0"
hooks:
  pre-commit:
    stages:
      - name: fixups
        tasks:
          - id: format
            mode: fix
  pre-push:
    stages:
      - name: build
        tasks: [build]
      - name: verify
        parallel: true
        dependencies: [build]
        tasks: [test, version-sync]
  ci:
    stages:
      - name: quality
        parallel: true
        tasks: [format, unused]
      - name: build
        tasks: [build]
        dependencies: [quality]
      - name: verify
        parallel: true
        dependencies: [build]
        tasks: [test, duplicates]
`

// Generator manages hook scripts for one project.
type Generator struct {
	root    string
	version string
}

// New creates a generator for the project rooted at root.
func New(root, version string) *Generator {
	return &Generator{root: root, version: version}
}

func (g *Generator) latchDir() string    { return filepath.Join(g.root, ".latch") }
func (g *Generator) scriptsDir() string  { return filepath.Join(g.latchDir(), "hooks") }
func (g *Generator) gitHooksDir() string { return filepath.Join(g.root, ".git", "hooks") }

// InitManifest writes the starter manifest. Refuses to overwrite an existing
// one so a re-run never clobbers user configuration.
func (g *Generator) InitManifest() (string, error) {
	if _, err := os.Stat(filepath.Join(g.root, ".git")); os.IsNotExist(err) {
		return "", fmt.Errorf("not a git repository; run git init first")
	}
	for _, name := range []string{"hooks.yaml", "hooks.yml", "hooks.json"} {
		path := filepath.Join(g.latchDir(), name)
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("manifest %s already exists", path)
		}
	}
	if err := os.MkdirAll(g.latchDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating .latch directory: %w", err)
	}
	path := filepath.Join(g.latchDir(), "hooks.yaml")
	if err := os.WriteFile(path, []byte(starterManifest), 0o644); err != nil {
		return "", fmt.Errorf("writing starter manifest: %w", err)
	}
	return path, nil
}

// Generate renders the hook scripts into .latch/hooks/.
func (g *Generator) Generate() ([]string, error) {
	tpl, err := raymond.Parse(scriptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing hook template: %w", err)
	}
	if err := os.MkdirAll(g.scriptsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating hooks directory: %w", err)
	}

	var written []string
	for _, h := range Hooks {
		content, err := tpl.Exec(map[string]interface{}{
			"hook":    h,
			"marker":  marker,
			"version": g.version,
		})
		if err != nil {
			return nil, fmt.Errorf("rendering %s hook: %w", h, err)
		}
		path := filepath.Join(g.scriptsDir(), h)
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil { // #nosec G306 -- hook scripts must be executable
			return nil, fmt.Errorf("writing %s hook: %w", h, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// Install copies generated scripts into .git/hooks, backing up any hook that
// is already there and not ours.
func (g *Generator) Install() (int, error) {
	if _, err := os.Stat(g.scriptsDir()); os.IsNotExist(err) {
		return 0, fmt.Errorf("no generated hooks; run latch hooks generate first")
	}
	if _, err := os.Stat(g.gitHooksDir()); os.IsNotExist(err) {
		return 0, fmt.Errorf(".git/hooks not found; are you in a git repository?")
	}

	installed := 0
	for _, h := range Hooks {
		src := filepath.Join(g.scriptsDir(), h)
		data, err := os.ReadFile(src) // #nosec G304 -- paths are fixed hook names
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return installed, fmt.Errorf("reading generated %s hook: %w", h, err)
		}

		dst := filepath.Join(g.gitHooksDir(), h)
		if existing, err := os.ReadFile(dst); err == nil && !strings.Contains(string(existing), marker) { // #nosec G304
			backup := dst + ".backup"
			if err := os.Rename(dst, backup); err != nil {
				return installed, fmt.Errorf("backing up existing %s hook: %w", h, err)
			}
			logger.Info("backed up existing hook", logger.String("hook", h), logger.String("backup", backup))
		}

		if err := os.WriteFile(dst, data, 0o755); err != nil { // #nosec G306
			return installed, fmt.Errorf("installing %s hook: %w", h, err)
		}
		installed++
	}
	if installed == 0 {
		return 0, fmt.Errorf("no hooks found to install")
	}
	return installed, nil
}

// Remove deletes our installed hooks and restores any backups. Hooks we did
// not write are left alone.
func (g *Generator) Remove() (int, error) {
	removed := 0
	for _, h := range Hooks {
		dst := filepath.Join(g.gitHooksDir(), h)
		data, err := os.ReadFile(dst) // #nosec G304
		if err != nil {
			continue
		}
		if !strings.Contains(string(data), marker) {
			logger.Warn("leaving unmanaged hook in place", logger.String("hook", h))
			continue
		}
		if err := os.Remove(dst); err != nil {
			return removed, fmt.Errorf("removing %s hook: %w", h, err)
		}
		removed++
		backup := dst + ".backup"
		if _, err := os.Stat(backup); err == nil {
			if err := os.Rename(backup, dst); err != nil {
				return removed, fmt.Errorf("restoring %s backup: %w", h, err)
			}
			logger.Info("restored backed-up hook", logger.String("hook", h))
		}
	}
	return removed, nil
}

// Status describes one lifecycle point's hook state for inspect.
type Status struct {
	Hook      string
	Generated bool
	Installed bool
	Managed   bool
}

// Inspect reports generation and installation state per hook.
func (g *Generator) Inspect() []Status {
	out := make([]Status, 0, len(Hooks))
	for _, h := range Hooks {
		st := Status{Hook: h}
		if _, err := os.Stat(filepath.Join(g.scriptsDir(), h)); err == nil {
			st.Generated = true
		}
		if data, err := os.ReadFile(filepath.Join(g.gitHooksDir(), h)); err == nil { // #nosec G304
			st.Installed = true
			st.Managed = strings.Contains(string(data), marker)
		}
		out = append(out, st)
	}
	return out
}
