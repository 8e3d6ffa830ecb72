// Package config loads and validates the hook manifest that maps git
// lifecycle points to stages of tasks.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/latchhq/latch/internal/hook"
	"github.com/latchhq/latch/internal/stage"
	"github.com/latchhq/latch/internal/task"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed hooks-schema.yaml
var hooksSchemaYAML []byte

// manifestNames are tried in order under <root>/.latch/.
var manifestNames = []string{"hooks.json", "hooks.yaml", "hooks.yml"}

// ManifestError marks a malformed or invalid manifest. It is raised before
// any task runs so the CLI can map it to the configuration exit code.
type ManifestError struct {
	msg string
}

func (e *ManifestError) Error() string { return e.msg }

func manifestErrorf(format string, args ...interface{}) *ManifestError {
	return &ManifestError{msg: fmt.Sprintf(format, args...)}
}

// TaskRefConfig is one task reference in a manifest. It accepts either a bare
// id string or an object with id and mode.
type TaskRefConfig struct {
	ID   string `json:"id"`
	Mode string `json:"mode,omitempty"`
}

// UnmarshalJSON accepts "format" and {"id": "format", "mode": "fix"} alike.
func (r *TaskRefConfig) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	type plain TaskRefConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = TaskRefConfig(p)
	return nil
}

// StageConfig is one stage declaration in a manifest.
type StageConfig struct {
	Name            string          `json:"name"`
	Tasks           []TaskRefConfig `json:"tasks"`
	Parallel        bool            `json:"parallel,omitempty"`
	Dependencies    []string        `json:"dependencies,omitempty"`
	DependsOn       string          `json:"dependsOn,omitempty"`
	ContinueOnError bool            `json:"continueOnError,omitempty"`
}

// HookConfig configures one lifecycle point. Either the legacy flat shape
// (tasks + parallel) or the staged shape is accepted, never both.
type HookConfig struct {
	Tasks    []TaskRefConfig `json:"tasks,omitempty"`
	Parallel bool            `json:"parallel,omitempty"`
	Stages   []StageConfig   `json:"stages,omitempty"`
}

// ShellTaskConfig declares a user-defined shell task in the manifest.
type ShellTaskConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Command     string   `json:"command"`
	Args        []string `json:"args,omitempty"`
	Hooks       []string `json:"hooks,omitempty"`
	Blocking    bool     `json:"blocking,omitempty"`
	FixCommand  string   `json:"fixCommand,omitempty"`
	FixArgs     []string `json:"fixArgs,omitempty"`
	ParseOutput bool     `json:"parseOutput,omitempty"`
	Patterns    []string `json:"patterns,omitempty"`
}

// Manifest is the parsed hook manifest.
type Manifest struct {
	Version string                `json:"version,omitempty"`
	Hooks   map[string]HookConfig `json:"hooks,omitempty"`
	Shell   []ShellTaskConfig     `json:"shell,omitempty"`
}

// LoadManifest locates and parses the manifest under <root>/.latch/. A
// missing manifest is not an error: every hook then resolves to its built-in
// default stage list, so callers get (nil, nil).
func LoadManifest(root string) (*Manifest, error) {
	for _, name := range manifestNames {
		path := filepath.Join(root, ".latch", name)
		data, err := os.ReadFile(path) // #nosec G304 -- path is rooted in the project
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading manifest %s: %w", path, err)
		}
		m, perr := ParseManifest(data, strings.HasSuffix(name, ".json"))
		if perr != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, perr)
		}
		return m, nil
	}
	return nil, nil
}

// ParseManifest validates raw manifest bytes against the embedded schema and
// decodes them. YAML input is converted to JSON before validation so one
// schema covers both encodings.
func ParseManifest(data []byte, isJSON bool) (*Manifest, error) {
	jsonBytes := data
	if !isJSON {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, manifestErrorf("invalid YAML: %v", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, manifestErrorf("converting YAML manifest: %v", err)
		}
		jsonBytes = converted
	}

	if err := validateManifest(jsonBytes); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil, manifestErrorf("decoding manifest: %v", err)
	}
	for name, hc := range m.Hooks {
		if _, err := hook.ParseType(name); err != nil {
			return nil, manifestErrorf("unknown hook %q", name)
		}
		if len(hc.Tasks) > 0 && len(hc.Stages) > 0 {
			return nil, manifestErrorf("hook %q declares both a flat task list and stages; use one", name)
		}
	}
	return &m, nil
}

func validateManifest(jsonBytes []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonBytes))
	if err != nil {
		return manifestErrorf("validating manifest: %v", err)
	}
	if !result.Valid() {
		var details []string
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" {
				field = "root"
			}
			details = append(details, fmt.Sprintf("%s: %s", field, verr.Description()))
		}
		return manifestErrorf("manifest failed schema validation:\n%s", strings.Join(details, "\n"))
	}
	return nil
}

var (
	hooksSchema     *gojsonschema.Schema
	hooksSchemaErr  error
	hooksSchemaOnce sync.Once
)

func compiledSchema() (*gojsonschema.Schema, error) {
	hooksSchemaOnce.Do(func() {
		var doc interface{}
		if err := yaml.Unmarshal(hooksSchemaYAML, &doc); err != nil {
			hooksSchemaErr = fmt.Errorf("embedded schema is not valid YAML: %w", err)
			return
		}
		jsonBytes, err := json.Marshal(doc)
		if err != nil {
			hooksSchemaErr = fmt.Errorf("embedded schema: %w", err)
			return
		}
		hooksSchema, hooksSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
		if hooksSchemaErr != nil {
			hooksSchemaErr = fmt.Errorf("compiling embedded schema: %w", hooksSchemaErr)
		}
	})
	return hooksSchema, hooksSchemaErr
}

// StagesFor resolves one lifecycle point into the canonical staged model. The
// legacy flat shape becomes a single implicit stage named after the hook with
// no dependencies, so the scheduler only ever sees stages.
func (m *Manifest) StagesFor(ht hook.Type) ([]stage.Stage, error) {
	hc, ok := m.Hooks[string(ht)]
	if !ok {
		return nil, nil
	}
	if len(hc.Stages) == 0 {
		if len(hc.Tasks) == 0 {
			return nil, nil
		}
		refs, err := parseRefs(string(ht), hc.Tasks)
		if err != nil {
			return nil, err
		}
		return []stage.Stage{{Name: string(ht), Tasks: refs, Parallel: hc.Parallel}}, nil
	}

	stages := make([]stage.Stage, 0, len(hc.Stages))
	for _, sc := range hc.Stages {
		deps := sc.Dependencies
		if sc.DependsOn != "" {
			if len(deps) > 0 {
				return nil, manifestErrorf("stage %q sets both dependsOn and dependencies; use dependencies", sc.Name)
			}
			deps = []string{sc.DependsOn}
		}
		refs, err := parseRefs(sc.Name, sc.Tasks)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage.Stage{
			Name:            sc.Name,
			Tasks:           refs,
			Parallel:        sc.Parallel,
			Dependencies:    deps,
			ContinueOnError: sc.ContinueOnError,
		})
	}
	return stages, nil
}

func parseRefs(owner string, refs []TaskRefConfig) ([]stage.TaskRef, error) {
	out := make([]stage.TaskRef, 0, len(refs))
	for _, rc := range refs {
		if rc.ID == "" {
			return nil, manifestErrorf("stage %q has a task reference without an id", owner)
		}
		mode, err := stage.ParseMode(rc.Mode)
		if err != nil {
			return nil, manifestErrorf("stage %q task %q: %v", owner, rc.ID, err)
		}
		out = append(out, stage.TaskRef{ID: rc.ID, Mode: mode})
	}
	return out, nil
}

// ShellTasks converts the manifest's shell declarations into task configs.
func (m *Manifest) ShellTasks() ([]task.ShellConfig, error) {
	out := make([]task.ShellConfig, 0, len(m.Shell))
	for _, sc := range m.Shell {
		hooks := make([]hook.Type, 0, len(sc.Hooks))
		for _, h := range sc.Hooks {
			ht, err := hook.ParseType(h)
			if err != nil {
				return nil, manifestErrorf("shell task %q: %v", sc.ID, err)
			}
			hooks = append(hooks, ht)
		}
		out = append(out, task.ShellConfig{
			ID:          sc.ID,
			Name:        sc.Name,
			Command:     sc.Command,
			Args:        sc.Args,
			Hooks:       hooks,
			Blocking:    sc.Blocking,
			FixCommand:  sc.FixCommand,
			FixArgs:     sc.FixArgs,
			ParseOutput: sc.ParseOutput,
			Patterns:    sc.Patterns,
		})
	}
	return out, nil
}
