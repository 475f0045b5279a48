package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
repository:
  owner: jina-ai
  name: jina
  path: ../jina
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jina-ai/jina", cfg.Repository.FullName())
	assert.Equal(t, "master", cfg.Repository.DefaultBranch)
	assert.Equal(t, 3, cfg.Releases.Count)
	assert.Equal(t, PolicyStable, cfg.Releases.Policy)
	assert.Equal(t, "bash", cfg.Builder.Command)
	assert.Equal(t, []string{"makedoc.sh"}, cfg.Builder.Args)
	assert.Equal(t, "docs", cfg.Builder.DocsDir)
	assert.Equal(t, "_build/dirhtml", cfg.Builder.BuildDir)
	assert.Equal(t, "./site", cfg.Output.Directory)
	assert.True(t, cfg.Output.CleanEnabled())
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestLoad_CleanDefaultsTrueWithExplicitDirectory(t *testing.T) {
	path := writeConfig(t, `
repository:
  owner: example
  name: project
output:
  directory: ./custom-site
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./custom-site", cfg.Output.Directory)
	// Naming a directory must not silently turn off the pre-build clean.
	assert.True(t, cfg.Output.CleanEnabled())
}

func TestLoad_CleanExplicitlyDisabled(t *testing.T) {
	path := writeConfig(t, `
repository:
  owner: example
  name: project
output:
  directory: ./site
  clean: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Output.CleanEnabled())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DOCVER_TEST_TOKEN", "tok-123")
	path := writeConfig(t, `
repository:
  owner: example
  name: project
  token: ${DOCVER_TEST_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cfg.Repository.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_RequiresRepository(t *testing.T) {
	path := writeConfig(t, `
output:
  directory: ./site
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_OptionalSections(t *testing.T) {
	path := writeConfig(t, `
repository:
  owner: example
  name: project
metrics:
  enabled: true
events:
  enabled: true
history:
  enabled: true
daemon: {}
harness:
  port: 45678
  setup_script: scripts/setup.sh
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
	require.NotNil(t, cfg.Events)
	assert.Equal(t, "docver.builds", cfg.Events.Subject)
	assert.Equal(t, "DOCVER", cfg.Events.Stream)
	require.NotNil(t, cfg.History)
	assert.Equal(t, "docver.db", cfg.History.Path)
	require.NotNil(t, cfg.Daemon)
	assert.Positive(t, cfg.Daemon.Interval)
	require.NotNil(t, cfg.Harness)
	assert.Equal(t, 45678, cfg.Harness.Port)
	assert.Equal(t, "cx32", cfg.Harness.ServerType)
	assert.Equal(t, 10, cfg.Harness.VolumeSize)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docver.yaml")
	require.NoError(t, Init(path, false))

	// Second init without force must refuse to overwrite.
	err := Init(path, false)
	require.Error(t, err)

	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example", cfg.Repository.Owner)
}

func TestNormalizeReleasePolicy(t *testing.T) {
	assert.Equal(t, PolicyNewest, NormalizeReleasePolicy("Newest"))
	assert.Equal(t, PolicyStable, NormalizeReleasePolicy("stable"))
	assert.Equal(t, PolicyStable, NormalizeReleasePolicy(""))
	assert.Equal(t, PolicyStable, NormalizeReleasePolicy("bogus"))
}

func TestNormalizeLogLevelAndFormat(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("WARNING"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel(""))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("weird"))
}
