package uninstall_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/filesystem"
	"github.com/lodge-sh/lodge/pkg/flows"
	"github.com/lodge-sh/lodge/pkg/index"
	"github.com/lodge-sh/lodge/pkg/types"
	"github.com/lodge-sh/lodge/pkg/uninstall"
)

var testPlatforms = []types.Platform{
	{
		ID:             "claude",
		RootDir:        ".claude",
		RootFile:       "CLAUDE.md",
		CommentLeader:  "<!--",
		CommentTrailer: "-->",
	},
}

func newUninstaller(fs types.FS) (*uninstall.Uninstaller, index.Store) {
	store := index.NewStore(fs)
	return uninstall.New(fs, store, testPlatforms), store
}

func writeIndexed(t *testing.T, store index.Store, targetDir, pkg string, records map[string][]types.FlowWriteRecord) {
	t.Helper()
	idx, err := store.Read(targetDir)
	require.NoError(t, err)
	idx.Set(&types.WorkspaceIndexEntry{
		PackageName:  pkg,
		DeclaredPath: "pkgs/" + pkg,
		Version:      "1.0.0",
		Files:        records,
	})
	require.NoError(t, store.Write(targetDir, idx))
}

func writeTarget(t *testing.T, targetDir, rel string, data []byte) {
	t.Helper()
	abs := filepath.Join(targetDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, data, 0o644))
}

func exists(targetDir, rel string) bool {
	_, err := os.Stat(filepath.Join(targetDir, filepath.FromSlash(rel)))
	return err == nil
}

func TestRemove_BareRecordDeletesFile(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeTarget(t, targetDir, ".claude/commands/deploy.md", []byte("run it\n"))
	writeIndexed(t, store, targetDir, "toolkit", map[string][]types.FlowWriteRecord{
		"commands/deploy.md": {{Target: ".claude/commands/deploy.md", Strategy: types.MergeReplace, Bare: true}},
	})

	result, err := u.Remove(targetDir, "toolkit")
	require.NoError(t, err)

	assert.Equal(t, []string{".claude/commands/deploy.md"}, result.Removed)
	assert.False(t, exists(targetDir, ".claude/commands/deploy.md"))

	idx, err := store.Read(targetDir)
	require.NoError(t, err)
	assert.Nil(t, idx.Get("toolkit"))
}

func TestRemove_UnknownPackage(t *testing.T) {
	fs := filesystem.NewOS()
	u, _ := newUninstaller(fs)

	_, err := u.Remove(t.TempDir(), "ghost")

	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPackageMissing))
}

func TestRemove_DeepMergeRoundTripLeavesFileAbsent(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeTarget(t, targetDir, ".claude/settings.json", []byte(`{"editor":{"tabSize":2}}`))
	writeIndexed(t, store, targetDir, "prefs", map[string][]types.FlowWriteRecord{
		"settings.json": {{
			Source:      "settings.json",
			Target:      ".claude/settings.json",
			Strategy:    types.MergeDeep,
			KeysWritten: []string{"editor.tabSize"},
		}},
	})

	result, err := u.Remove(targetDir, "prefs")
	require.NoError(t, err)

	assert.Contains(t, result.Removed, ".claude/settings.json")
	assert.False(t, exists(targetDir, ".claude/settings.json"))
}

func TestRemove_DeepMergeKeepsOtherPackagesKeys(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeTarget(t, targetDir, ".claude/settings.json",
		[]byte(`{"editor":{"tabSize":2},"terminal":{"shell":"zsh"}}`))
	writeIndexed(t, store, targetDir, "p", map[string][]types.FlowWriteRecord{
		"settings.json": {{
			Source:      "settings.json",
			Target:      ".claude/settings.json",
			Strategy:    types.MergeDeep,
			KeysWritten: []string{"editor.tabSize"},
		}},
	})

	result, err := u.Remove(targetDir, "p")
	require.NoError(t, err)

	assert.Contains(t, result.Updated, ".claude/settings.json")
	data, err := os.ReadFile(filepath.Join(targetDir, ".claude/settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "zsh")
	assert.NotContains(t, string(data), "tabSize")
}

func TestRemove_CompositeStripsSectionNeverHost(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	markers := flows.Markers{Leader: "<!--", Trailer: "-->"}
	host := flows.WriteSection(nil, markers, "docs", []byte("from docs"))
	writeTarget(t, targetDir, ".claude/CLAUDE.md", host)
	writeIndexed(t, store, targetDir, "docs", map[string][]types.FlowWriteRecord{
		"root.md": {{Source: "root.md", Target: ".claude/CLAUDE.md", Strategy: types.MergeComposite}},
	})

	result, err := u.Remove(targetDir, "docs")
	require.NoError(t, err)

	assert.Contains(t, result.Updated, ".claude/CLAUDE.md")
	assert.True(t, exists(targetDir, ".claude/CLAUDE.md"))
	data, err := os.ReadFile(filepath.Join(targetDir, ".claude/CLAUDE.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from docs")
}

func TestRemove_DegradedMergeRecordWarnsOnly(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeTarget(t, targetDir, ".claude/settings.json", []byte(`{"kept":true}`))
	writeIndexed(t, store, targetDir, "p", map[string][]types.FlowWriteRecord{
		"settings.json": {{
			Source:   "settings.json",
			Target:   ".claude/settings.json",
			Strategy: types.MergeDeep,
		}},
	})

	result, err := u.Remove(targetDir, "p")
	require.NoError(t, err)

	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Updated)
	require.NotEmpty(t, result.Warnings)
	assert.True(t, exists(targetDir, ".claude/settings.json"))
}

func TestRemove_UnparseableTargetWarnsAndKeepsFile(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeTarget(t, targetDir, ".claude/settings.json", []byte("{{{{"))
	writeIndexed(t, store, targetDir, "p", map[string][]types.FlowWriteRecord{
		"settings.json": {{
			Source:      "settings.json",
			Target:      ".claude/settings.json",
			Strategy:    types.MergeDeep,
			KeysWritten: []string{"a"},
		}},
	})

	result, err := u.Remove(targetDir, "p")
	require.NoError(t, err)

	require.NotEmpty(t, result.Warnings)
	data, _ := os.ReadFile(filepath.Join(targetDir, ".claude/settings.json"))
	assert.Equal(t, "{{{{", string(data))
}

func TestRemove_PrunesEmptyDirsButPreservesPlatformRoot(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeTarget(t, targetDir, ".claude/commands/nested/deploy.md", []byte("x"))
	writeIndexed(t, store, targetDir, "p", map[string][]types.FlowWriteRecord{
		"commands/nested/deploy.md": {{Target: ".claude/commands/nested/deploy.md", Strategy: types.MergeReplace, Bare: true}},
	})

	_, err := u.Remove(targetDir, "p")
	require.NoError(t, err)

	assert.False(t, exists(targetDir, ".claude/commands/nested"))
	assert.False(t, exists(targetDir, ".claude/commands"))
	assert.True(t, exists(targetDir, ".claude"))
}

func TestRemove_MissingTargetFileIsNotAnError(t *testing.T) {
	fs := filesystem.NewOS()
	targetDir := t.TempDir()
	u, store := newUninstaller(fs)

	writeIndexed(t, store, targetDir, "p", map[string][]types.FlowWriteRecord{
		"gone.md": {{Target: ".claude/gone.md", Strategy: types.MergeReplace, Bare: true}},
	})

	result, err := u.Remove(targetDir, "p")
	require.NoError(t, err)
	assert.Empty(t, result.Removed)

	idx, err := store.Read(targetDir)
	require.NoError(t, err)
	assert.Nil(t, idx.Get("p"))
}
