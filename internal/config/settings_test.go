package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.Verbose)
	assert.Equal(t, 100, s.ConcurrencyPercent)
	assert.True(t, s.Format.Blocking)
	assert.True(t, s.Build.Required)
	assert.False(t, s.Unused.Blocking)
	assert.Equal(t, "VERSION", s.VersionSync.Source)
	assert.Equal(t, "semver", s.VersionSync.Scheme)
}

func TestLoadSettingsFromFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".latch"), 0o755))
	cfg := []byte(`
verbose: true
concurrency_percent: 50
format:
  tool: swiftformat
  patterns: ["Sources/**/*.swift"]
duplicates:
  threshold: 3.5
  blocking: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".latch", "config.yaml"), cfg, 0o644))

	s, err := LoadSettings(root)
	require.NoError(t, err)
	assert.True(t, s.Verbose)
	assert.Equal(t, 50, s.ConcurrencyPercent)
	assert.Equal(t, "swiftformat", s.Format.Tool)
	assert.Equal(t, []string{"Sources/**/*.swift"}, s.Format.Patterns)
	assert.InDelta(t, 3.5, s.Duplicates.Threshold, 0.001)
	assert.True(t, s.Duplicates.Blocking)

	dup := s.DuplicatesConfig()
	assert.Equal(t, 3.5, dup.Threshold)
	assert.True(t, dup.Blocking)
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("LATCH_VERBOSE", "true")
	s, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.True(t, s.Verbose)
}
