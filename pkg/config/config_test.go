package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-sh/lodge/pkg/config"
	"github.com/lodge-sh/lodge/pkg/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvTarget, "")
	t.Setenv(config.EnvRegistry, "")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.TargetDir)
	assert.Equal(t, []string{"claude"}, cfg.Platforms)
	assert.NotEmpty(t, cfg.Registry)
}

func TestLoad_WorkspaceOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	workspace := `
[package]
name = "workspace"

[workspace]
target = "deploy"
platforms = ["claude", "vscode"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lodge.toml"), []byte(workspace), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "deploy"), cfg.TargetDir)
	assert.Equal(t, []string{"claude", "vscode"}, cfg.Platforms)
}

func TestLoad_EnvBeatsWorkspace(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	override := t.TempDir()
	workspace := "[workspace]\ntarget = \"deploy\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lodge.toml"), []byte(workspace), 0o644))
	t.Setenv(config.EnvTarget, override)
	t.Setenv(config.EnvRegistry, "https://registry.example.com")

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, override, cfg.TargetDir)
	assert.Equal(t, "https://registry.example.com", cfg.Registry)
}

func TestLoad_MalformedWorkspaceConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lodge.toml"), []byte("]["), 0o644))

	_, err := config.Load(dir)

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigLoad))
}

func TestLoad_EmptyPlatformListRejected(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	workspace := "[workspace]\nplatforms = []\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lodge.toml"), []byte(workspace), 0o644))

	_, err := config.Load(dir)

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigInvalid))
}
