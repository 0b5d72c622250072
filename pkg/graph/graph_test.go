package graph_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodge-sh/lodge/pkg/graph"
	"github.com/lodge-sh/lodge/pkg/types"
)

// mapWalker serves declarations from a fixed table.
type mapWalker struct {
	declarations map[string][]types.DependencyDeclaration
	failures     map[string]error
}

func (w *mapWalker) Declarations(name, version string) ([]types.DependencyDeclaration, error) {
	key := types.NormalizeName(name)
	if err, ok := w.failures[key]; ok {
		return nil, err
	}
	return w.declarations[key], nil
}

func dep(name, rng, requestedBy string) types.DependencyDeclaration {
	return types.DependencyDeclaration{
		Name:         name,
		VersionRange: rng,
		Source:       types.NewRegistrySource(name),
		RequestedBy:  requestedBy,
	}
}

func TestBuild_CycleIsSkippedNotAnError(t *testing.T) {
	walker := &mapWalker{declarations: map[string][]types.DependencyDeclaration{
		"root": {dep("a", "^1.0.0", "root")},
		"a":    {dep("b", "^1.0.0", "a")},
		"b":    {dep("a", "^1.0.0", "b")},
	}}

	g, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
	require.NoError(t, err)

	g.Finalize()
	require.Len(t, g.Nodes, 3)

	counts := map[string]int{}
	for _, id := range g.InstallationOrder {
		counts[id.Key()]++
	}
	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 1, counts["b"])
}

func TestBuild_TopologicalOrderIsValid(t *testing.T) {
	walker := &mapWalker{declarations: map[string][]types.DependencyDeclaration{
		"root": {dep("app", "^1.0.0", "root"), dep("util", "^1.0.0", "root")},
		"app":  {dep("lib", "^2.0.0", "app"), dep("util", "^1.0.0", "app")},
		"lib":  {dep("util", "^1.0.0", "lib")},
	}}

	g, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
	require.NoError(t, err)
	g.Finalize()

	position := map[string]int{}
	for i, id := range g.InstallationOrder {
		position[id.Key()] = i
	}

	for key, node := range g.Nodes {
		for depKey := range node.Dependencies {
			assert.LessOrEqual(t, position[depKey], position[key],
				"dependency %s must not come after dependent %s", depKey, key)
		}
	}
}

func TestBuild_OrderIsDeterministic(t *testing.T) {
	walker := &mapWalker{declarations: map[string][]types.DependencyDeclaration{
		"root": {dep("zeta", "", "root"), dep("alpha", "", "root"), dep("mid", "", "root")},
	}}

	var orders []string
	for i := 0; i < 5; i++ {
		g, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
		require.NoError(t, err)
		g.Finalize()
		orders = append(orders, fmt.Sprint(g.InstallationOrder))
	}
	for _, o := range orders[1:] {
		assert.Equal(t, orders[0], o)
	}
}

func TestBuild_OverridePrecedence(t *testing.T) {
	walker := &mapWalker{declarations: map[string][]types.DependencyDeclaration{
		"root": {dep("a", "^1.0.0", "root")},
		"a":    {dep("pinned", "^3.0.0", "a"), dep("rooted", "^3.0.0", "a")},
	}}

	builder := graph.NewBuilder(walker, graph.BuildOptions{
		GlobalOverrides: map[string]string{"pinned": "2.2.2"},
		RootOverrides:   map[string]string{"rooted": "~1.5.0", "pinned": "9.9.9"},
	})
	g, err := builder.Build("root", "1.0.0")
	require.NoError(t, err)

	a := g.Get("a")
	require.NotNil(t, a)
	byName := map[string]string{}
	for _, d := range a.Declarations {
		byName[d.Name] = d.VersionRange
	}
	assert.Equal(t, "2.2.2", byName["pinned"], "global override beats root override")
	assert.Equal(t, "~1.5.0", byName["rooted"])
}

func TestBuild_WalkerFailureMarksNodeFailed(t *testing.T) {
	walker := &mapWalker{
		declarations: map[string][]types.DependencyDeclaration{
			"root": {dep("ok", "^1.0.0", "root"), dep("broken", "^1.0.0", "root")},
		},
		failures: map[string]error{"broken": fmt.Errorf("manifest unreadable")},
	}

	g, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
	require.NoError(t, err, "sibling failure must not abort the build")

	assert.Equal(t, graph.StateFailed, g.Get("broken").State)
	assert.NotEqual(t, graph.StateFailed, g.Get("ok").State)
}

func TestBuild_RootWalkerFailureIsFatal(t *testing.T) {
	walker := &mapWalker{failures: map[string]error{"root": fmt.Errorf("no manifest")}}

	_, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
	require.Error(t, err)
}

func TestDanglingDependencies(t *testing.T) {
	// root -> app -> lib -> util, root -> shared, app -> shared
	walker := &mapWalker{declarations: map[string][]types.DependencyDeclaration{
		"root": {dep("app", "", "root"), dep("shared", "", "root")},
		"app":  {dep("lib", "", "app"), dep("shared", "", "app")},
		"lib":  {dep("util", "", "lib")},
	}}

	g, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
	require.NoError(t, err)

	// Removing app frees lib and util; shared stays because the root
	// still depends on it (and it is protected).
	assert.Equal(t, []string{"lib", "util"}, g.DanglingDependencies("app"))
}

func TestDanglingDependencies_ProtectedSurvives(t *testing.T) {
	walker := &mapWalker{declarations: map[string][]types.DependencyDeclaration{
		"root": {dep("app", "", "root"), dep("lib", "", "root")},
		"app":  {dep("lib", "", "app")},
	}}

	g, err := graph.NewBuilder(walker, graph.BuildOptions{}).Build("root", "1.0.0")
	require.NoError(t, err)

	// lib's only remaining dependents would all be removed, but it is
	// declared by the workspace itself.
	assert.Empty(t, g.DanglingDependencies("app"))
}
