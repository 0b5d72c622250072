// Package graph builds the dependency graph for a resolution run: a
// node set keyed by normalized package name, symmetric dependency and
// dependent edge sets, and a deterministic topological installation
// order. Cyclic declarations are tolerated (the cycle edge is simply
// not followed), never treated as an error.
package graph

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/lodge-sh/lodge/pkg/types"
)

// ErrNotLoaded is returned by a Walker when a package's manifest has
// not been fetched yet; the node stays pending and a later resolution
// wave retries it.
var ErrNotLoaded = stderrors.New("package metadata not loaded")

// Walker yields the declared dependencies of a package. Manifest
// syntax is opaque to this package; implementations read manifests or
// loader metadata.
type Walker interface {
	Declarations(name, version string) ([]types.DependencyDeclaration, error)
}

// NodeState tracks a node through loading.
type NodeState int

const (
	// StatePending means the node was referenced but not loaded yet.
	StatePending NodeState = iota

	// StateLoading means a load is in flight.
	StateLoading

	// StateResolved means the node's metadata is available.
	StateResolved

	// StateFailed is terminal: the planner skips failed nodes.
	StateFailed
)

// String implements fmt.Stringer.
func (s NodeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoading:
		return "loading"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// Node is one package in the graph. It is created when first
// referenced by any declaration and mutated as loading completes.
type Node struct {
	ID           types.PackageIdentity
	Source       types.Source
	Declarations []types.DependencyDeclaration
	Loaded       *types.LoadedPackage
	State        NodeState
	Err          error

	// Depth is the shallowest distance from the root (root is 0).
	Depth int

	// Protected marks packages explicitly declared by the top-level
	// workspace manifest; they are never auto-removed as dangling.
	Protected bool

	Dependencies map[string]*Node
	Dependents   map[string]*Node
}

// Graph holds the node set and, once resolution stabilizes, the
// topological installation order (dependencies before dependents).
type Graph struct {
	Root              *Node
	Nodes             map[string]*Node
	InstallationOrder []types.PackageIdentity
}

// Get returns the node for a package name, or nil.
func (g *Graph) Get(name string) *Node {
	return g.Nodes[types.NormalizeName(name)]
}

// MarkFailed transitions a node to the terminal failed state.
func (g *Graph) MarkFailed(name string, err error) {
	if node := g.Get(name); node != nil {
		node.State = StateFailed
		node.Err = err
	}
}

// SetLoaded attaches loaded metadata to a node and marks it resolved.
func (g *Graph) SetLoaded(name string, loaded *types.LoadedPackage) {
	if node := g.Get(name); node != nil {
		node.Loaded = loaded
		if loaded != nil && loaded.Version != "" {
			node.ID.Version = loaded.Version
		}
		node.State = StateResolved
	}
}

// Pending returns the names of nodes still awaiting metadata, sorted.
func (g *Graph) Pending() []string {
	var pending []string
	for key, node := range g.Nodes {
		if node.State == StatePending {
			pending = append(pending, key)
		}
	}
	sort.Strings(pending)
	return pending
}

// Finalize computes InstallationOrder. It must be called after the
// last resolution wave; calling it again recomputes from the current
// node set.
func (g *Graph) Finalize() {
	g.InstallationOrder = g.topoOrder()
}

// topoOrder is Kahn's algorithm with a name-sorted ready set, so the
// order is identical across runs for the same graph regardless of map
// iteration. Any leftover nodes (only possible if edges were mutated
// behind the builder's back) are appended sorted rather than dropped.
func (g *Graph) topoOrder() []types.PackageIdentity {
	indegree := make(map[string]int, len(g.Nodes))
	for key, node := range g.Nodes {
		indegree[key] = len(node.Dependencies)
	}

	var ready []string
	for key, n := range indegree {
		if n == 0 {
			ready = append(ready, key)
		}
	}
	sort.Strings(ready)

	order := make([]types.PackageIdentity, 0, len(g.Nodes))
	emitted := make(map[string]bool, len(g.Nodes))
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		node := g.Nodes[key]
		order = append(order, node.ID)
		emitted[key] = true

		var unlocked []string
		for depKey := range node.Dependents {
			indegree[depKey]--
			if indegree[depKey] == 0 {
				unlocked = append(unlocked, depKey)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}

	if len(order) < len(g.Nodes) {
		var leftover []string
		for key := range g.Nodes {
			if !emitted[key] {
				leftover = append(leftover, key)
			}
		}
		sort.Strings(leftover)
		for _, key := range leftover {
			order = append(order, g.Nodes[key].ID)
		}
	}
	return order
}

// DanglingDependencies returns the packages that become removable when
// target (plus any others already being removed) is uninstalled: every
// dependent of such a package is the target or is itself removable,
// and the package is not protected. The result is sorted and excludes
// the target itself.
func (g *Graph) DanglingDependencies(target string) []string {
	removing := map[string]bool{types.NormalizeName(target): true}

	for changed := true; changed; {
		changed = false
		for key, node := range g.Nodes {
			if removing[key] || node.Protected {
				continue
			}
			if len(node.Dependents) == 0 {
				continue
			}
			all := true
			for depKey := range node.Dependents {
				if !removing[depKey] {
					all = false
					break
				}
			}
			if all {
				removing[key] = true
				changed = true
			}
		}
	}

	delete(removing, types.NormalizeName(target))
	dangling := make([]string, 0, len(removing))
	for key := range removing {
		dangling = append(dangling, key)
	}
	sort.Strings(dangling)
	return dangling
}
