package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/pkg/versioning"
	"github.com/pelletier/go-toml/v2"
)

// VersionSyncConfig configures the version consistency check.
type VersionSyncConfig struct {
	// Source is the file holding the authoritative version. Defaults to VERSION.
	Source string
	// Scheme selects how versions are compared. Defaults to semver.
	Scheme versioning.Scheme
	// Sources lists additional manifests to check. Empty means every known
	// manifest present in the project root.
	Sources []string
	// Blocking controls whether a mismatch fails the stage.
	Blocking bool
}

// VersionSyncTask verifies that every package manifest in the project declares
// the same version as the authoritative VERSION file. Each mismatching
// manifest produces one diagnostic naming the offender.
type VersionSyncTask struct {
	Meta
	cfg VersionSyncConfig
}

// knownManifests maps manifest file names to their version extractors.
var knownManifests = []string{"package.json", "Cargo.toml", "pyproject.toml", "pom.xml"}

// NewVersionSyncTask builds the version-sync task from configuration.
func NewVersionSyncTask(cfg VersionSyncConfig) *VersionSyncTask {
	if cfg.Source == "" {
		cfg.Source = "VERSION"
	}
	if cfg.Scheme == "" {
		cfg.Scheme = versioning.SchemeSemver
	}
	return &VersionSyncTask{
		Meta: Meta{
			TaskID:     "version-sync",
			TaskName:   "Version consistency",
			HookTypes:  []hook.Type{hook.PrePush, hook.CI},
			IsBlocking: cfg.Blocking,
			Safety:     FixSafe,
		},
		cfg: cfg,
	}
}

func (t *VersionSyncTask) Run(_ context.Context, hctx *hook.Context) Result {
	start := time.Now()

	data, err := os.ReadFile(hctx.AbsPath(t.cfg.Source))
	if err != nil {
		return Skipped(fmt.Sprintf("version source %q not readable", t.cfg.Source), time.Since(start))
	}
	declared := strings.TrimSpace(string(data))
	if declared == "" {
		diags := []Diagnostic{{
			File:     t.cfg.Source,
			Severity: SeverityError,
			Message:  "version source is empty",
		}}
		return Finalize(diags, t.IsBlocking, 1, time.Since(start))
	}

	sources := t.cfg.Sources
	if len(sources) == 0 {
		for _, name := range knownManifests {
			if _, err := os.Stat(hctx.AbsPath(name)); err == nil {
				sources = append(sources, name)
			}
		}
		sources = append(sources, csprojFiles(hctx.ProjectRoot)...)
	}

	var diags []Diagnostic
	checked := 1
	for _, src := range sources {
		found, err := readManifestVersion(hctx.AbsPath(src))
		if err != nil {
			diags = append(diags, Diagnostic{
				File:     src,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("could not read version: %v", err),
			})
			continue
		}
		checked++
		if found == "" {
			continue // manifest does not declare a version
		}
		if !versioning.Equal(t.cfg.Scheme, declared, found) {
			diags = append(diags, Diagnostic{
				File:     src,
				Severity: SeverityError,
				Message:  fmt.Sprintf("version %q does not match %s (%q)", found, t.cfg.Source, declared),
				Rule:     "version-mismatch",
			})
		}
	}
	return Finalize(diags, t.IsBlocking, checked, time.Since(start))
}

func (t *VersionSyncTask) Fix(context.Context, *hook.Context) FixResult {
	return FixResult{Errors: []string{"version-sync has no fix mode; update the manifests by hand"}}
}

// readManifestVersion extracts the declared version from a manifest based on
// its file type. Returns "" when the manifest carries no version field.
func readManifestVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasSuffix(path, ".json"):
		var m struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return "", err
		}
		return m.Version, nil

	case strings.HasSuffix(path, "Cargo.toml"):
		var m struct {
			Package struct {
				Version string `toml:"version"`
			} `toml:"package"`
		}
		if err := toml.Unmarshal(data, &m); err != nil {
			return "", err
		}
		return m.Package.Version, nil

	case strings.HasSuffix(path, "pyproject.toml"):
		var m struct {
			Project struct {
				Version string `toml:"version"`
			} `toml:"project"`
			Tool struct {
				Poetry struct {
					Version string `toml:"version"`
				} `toml:"poetry"`
			} `toml:"tool"`
		}
		if err := toml.Unmarshal(data, &m); err != nil {
			return "", err
		}
		if m.Project.Version != "" {
			return m.Project.Version, nil
		}
		return m.Tool.Poetry.Version, nil

	case strings.HasSuffix(path, ".xml"), strings.HasSuffix(path, ".csproj"):
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(data); err != nil {
			return "", err
		}
		// Maven: project/version. MSBuild: Project/PropertyGroup/Version.
		if el := doc.FindElement("/project/version"); el != nil {
			return strings.TrimSpace(el.Text()), nil
		}
		if el := doc.FindElement("//PropertyGroup/Version"); el != nil {
			return strings.TrimSpace(el.Text()), nil
		}
		return "", nil

	default:
		return "", fmt.Errorf("unsupported manifest type %q", filepath.Base(path))
	}
}

func csprojFiles(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csproj") {
			out = append(out, e.Name())
		}
	}
	return out
}
