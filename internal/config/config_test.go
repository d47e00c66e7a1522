package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_ProjectOverridesGlobalScalar(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("XDG_CONFIG_HOME", "")

	writeFile(t, GlobalConfigPath(), `{"model": "haiku"}`)

	projectDir := t.TempDir()
	writeFile(t, ProjectConfigPath(projectDir), `{"model": "opus"}`)

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	require.Equal(t, "opus", cfg.Model)
}

func TestLoad_ArraysReplaceRatherThanConcatenate(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	writeFile(t, GlobalConfigPath(), `{"allowedTools": ["Read", "Grep"]}`)

	projectDir := t.TempDir()
	writeFile(t, ProjectConfigPath(projectDir), `{"allowedTools": ["Write"]}`)

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	require.Equal(t, []string{"Write"}, cfg.AllowedTools)
}

func TestLoad_LocalOverridesProjectOverridesGlobal(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	writeFile(t, GlobalConfigPath(), `{"maxTurns": 5}`)

	projectDir := t.TempDir()
	writeFile(t, ProjectConfigPath(projectDir), `{"maxTurns": 10}`)
	writeFile(t, LocalConfigPath(projectDir), `{"maxTurns": 20}`)

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.MaxTurns)
}

func TestLoad_MissingFilesAreIgnored(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, defaultModel, cfg.Model)
}

func TestLoad_JSONCComments(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	projectDir := t.TempDir()
	writeFile(t, ProjectConfigPath(projectDir), `{
		// a trailing comment
		"model": "sonnet-commented" /* inline */
	}`)

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	require.Equal(t, "sonnet-commented", cfg.Model)
}

func TestLoad_EnvOverridesAllFileLayers(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("TURNENGINE_MODEL", "env-model")

	projectDir := t.TempDir()
	writeFile(t, ProjectConfigPath(projectDir), `{"model": "file-model"}`)

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	require.Equal(t, "env-model", cfg.Model)
}
