package flows_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-sh/lodge/pkg/flows"
	"github.com/lodge-sh/lodge/pkg/types"
)

func replaceWrite(pkg string, priority int, target string) flows.Write {
	return flows.Write{
		PackageName: pkg,
		Priority:    priority,
		SourceRel:   "file.txt",
		TargetRel:   target,
		Strategy:    types.MergeReplace,
		Data:        []byte(pkg),
	}
}

func TestResolveConflicts_HighestPriorityWins(t *testing.T) {
	writes := []flows.Write{
		replaceWrite("app", -1, ".claude/settings.json"),
		replaceWrite("root", 0, ".claude/settings.json"),
	}

	surviving, conflicts := flows.ResolveConflicts(writes)

	require.Len(t, surviving, 1)
	assert.Equal(t, "root", surviving[0].PackageName)

	require.Len(t, conflicts, 1)
	assert.Equal(t, ".claude/settings.json", conflicts[0].TargetPath)
	assert.Equal(t, "root", conflicts[0].Winner.PackageName)
	require.Len(t, conflicts[0].Losers, 1)
	assert.Equal(t, "app", conflicts[0].Losers[0].PackageName)
}

func TestResolveConflicts_EqualPriorityTieBreaksOnName(t *testing.T) {
	writes := []flows.Write{
		replaceWrite("zeta", -1, ".claude/out.txt"),
		replaceWrite("alpha", -1, ".claude/out.txt"),
	}

	surviving, conflicts := flows.ResolveConflicts(writes)

	require.Len(t, surviving, 1)
	assert.Equal(t, "alpha", surviving[0].PackageName)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "alpha", conflicts[0].Winner.PackageName)
	require.Len(t, conflicts[0].Losers, 1)
	assert.Equal(t, "zeta", conflicts[0].Losers[0].PackageName)
}

func TestResolveConflicts_SamePackageDuplicatesAreNotConflicts(t *testing.T) {
	writes := []flows.Write{
		replaceWrite("app", -1, ".claude/out.txt"),
		replaceWrite("app", -1, ".claude/out.txt"),
	}

	surviving, conflicts := flows.ResolveConflicts(writes)

	require.Len(t, surviving, 1)
	assert.Empty(t, conflicts)
}

func TestResolveConflicts_MergeWritesAllSurvive(t *testing.T) {
	writes := []flows.Write{
		{PackageName: "root", Priority: 0, TargetRel: ".claude/settings.json", Strategy: types.MergeDeep},
		{PackageName: "lib", Priority: -2, TargetRel: ".claude/settings.json", Strategy: types.MergeDeep},
		{PackageName: "app", Priority: -1, TargetRel: ".claude/settings.json", Strategy: types.MergeDeep},
	}

	surviving, conflicts := flows.ResolveConflicts(writes)

	assert.Empty(t, conflicts)
	require.Len(t, surviving, 3)
	// Lowest priority applies first so the root package's keys land last.
	assert.Equal(t, "lib", surviving[0].PackageName)
	assert.Equal(t, "app", surviving[1].PackageName)
	assert.Equal(t, "root", surviving[2].PackageName)
}

func TestResolveConflicts_DistinctTargetsNeverConflict(t *testing.T) {
	writes := []flows.Write{
		replaceWrite("a", 0, ".claude/a.txt"),
		replaceWrite("b", 0, ".claude/b.txt"),
	}

	surviving, conflicts := flows.ResolveConflicts(writes)

	assert.Len(t, surviving, 2)
	assert.Empty(t, conflicts)
}
