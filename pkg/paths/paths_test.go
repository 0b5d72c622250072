package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-sh/lodge/pkg/paths"
)

func TestNew_ExplicitWorkspaceWins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(paths.EnvWorkspace, t.TempDir())

	p, err := paths.New(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, p.WorkspaceRoot())
	assert.Equal(t, filepath.Join(dir, "lodge.toml"), p.ManifestFile())
}

func TestNew_EnvWorkspaceFallback(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(paths.EnvWorkspace, dir)

	p, err := paths.New("")
	require.NoError(t, err)

	assert.Equal(t, dir, p.WorkspaceRoot())
}

func TestNew_CurrentDirectoryDefault(t *testing.T) {
	t.Setenv(paths.EnvWorkspace, "")

	p, err := paths.New("")
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, p.WorkspaceRoot())
}

func TestNew_DirOverrides(t *testing.T) {
	data := t.TempDir()
	cache := t.TempDir()
	t.Setenv(paths.EnvDataDir, data)
	t.Setenv(paths.EnvCacheDir, cache)
	t.Setenv(paths.EnvConfigDir, "")

	p, err := paths.New(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, data, p.DataDir())
	assert.Equal(t, cache, p.CacheDir())
	assert.Contains(t, p.ConfigDir(), "lodge")
}
