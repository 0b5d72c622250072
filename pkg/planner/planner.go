// Package planner converts a finalized dependency graph into the
// ordered installation contexts the flow engine executes. Nodes that
// cannot or need not be installed are skipped with a recorded reason
// instead of failing the run.
package planner

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/graph"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/types"
)

// SkipReason classifies why a graph node produced no context.
type SkipReason string

const (
	// SkipFailed marks nodes whose load ended in a terminal error.
	SkipFailed SkipReason = "failed"

	// SkipNotLoaded marks nodes the load phase never populated.
	SkipNotLoaded SkipReason = "not-loaded"

	// SkipAlreadyInstalled marks nodes whose exact version is already
	// recorded in the workspace index.
	SkipAlreadyInstalled SkipReason = "already-installed"
)

// Skipped pairs a node identity with the reason it was excluded.
type Skipped struct {
	ID     types.PackageIdentity
	Reason SkipReason
}

// Plan is the output of one planning pass: contexts in installation
// order plus the nodes that were left out.
type Plan struct {
	Contexts            []*types.InstallationContext
	Skipped             []Skipped
	EstimatedOperations int
}

// Planner builds installation plans. It only reads the filesystem, to
// check whether resource-scoped paths exist under a package's base.
type Planner struct {
	fs     types.FS
	logger zerolog.Logger
}

// New returns a Planner over the given filesystem.
func New(filesystem types.FS) *Planner {
	return &Planner{fs: filesystem, logger: logging.GetLogger("planner")}
}

// CreatePlan walks the graph's installation order and builds one
// context per installable node. The index decides install versus
// apply: a missing entry means a fresh install, an entry at another
// version means re-apply, and an entry at the same version is skipped
// unless force is set.
func (p *Planner) CreatePlan(g *graph.Graph, idx *types.WorkspaceIndex, targetDir string,
	platforms []types.Platform, opts types.InstallOptions) *Plan {
	plan := &Plan{}

	for _, id := range g.InstallationOrder {
		node := g.Get(id.Name)
		if node == nil {
			continue
		}

		if node.State == graph.StateFailed {
			plan.Skipped = append(plan.Skipped, Skipped{ID: node.ID, Reason: SkipFailed})
			continue
		}
		if node.Loaded == nil {
			plan.Skipped = append(plan.Skipped, Skipped{ID: node.ID, Reason: SkipNotLoaded})
			continue
		}

		mode := types.ModeInstall
		if entry := idx.Get(node.ID.Name); entry != nil {
			if entry.Version == node.ID.Version && !opts.Force {
				plan.Skipped = append(plan.Skipped, Skipped{ID: node.ID, Reason: SkipAlreadyInstalled})
				continue
			}
			mode = types.ModeApply
		}

		ictx := &types.InstallationContext{
			Source:      node.Source,
			TargetDir:   targetDir,
			Mode:        mode,
			Options:     opts,
			Platforms:   platforms,
			PackageName: node.Loaded.PackageName,
			Version:     node.ID.Version,
			ContentRoot: node.Loaded.ContentRoot,
			ResolvedPackages: map[string]*types.LoadedPackage{
				types.NormalizeName(node.Loaded.PackageName): node.Loaded,
			},
			Priority: -node.Depth,
		}
		ictx.MatchedPattern = p.scopePattern(node, ictx.Base())

		p.logger.Debug().
			Str("package", ictx.PackageName).
			Str("version", ictx.Version).
			Stringer("mode", mode).
			Int("priority", ictx.Priority).
			Msg("planned installation context")
		plan.Contexts = append(plan.Contexts, ictx)
	}

	plan.EstimatedOperations = len(plan.Contexts) * max(1, len(platforms))
	return plan
}

// scopePattern narrows a context to a declared sub-resource of the
// package. Returns the match pattern, or empty to cover the whole
// base. Scoping never fails: an unresolvable or missing resource path
// falls back to the unscoped base.
func (p *Planner) scopePattern(node *graph.Node, base string) string {
	resource := declaredResource(node)
	if resource == "" {
		return ""
	}

	abs := filepath.Join(base, filepath.FromSlash(resource))
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		p.logger.Warn().
			Str("package", node.ID.Name).
			Str("resource", resource).
			Msg("resource path escapes package base, keeping unscoped pattern")
		return ""
	}

	info, err := p.fs.Stat(abs)
	if err != nil {
		p.logger.Warn().
			Str("package", node.ID.Name).
			Str("resource", resource).
			Msg("resource path not found, keeping unscoped pattern")
		return ""
	}

	rel = filepath.ToSlash(rel)
	if info.IsDir() {
		return rel + "/**"
	}
	return rel
}

// declaredResource finds the resource path the package was requested
// with, scanning the declarations of its dependents. The first match
// in sorted dependent order wins so the result is deterministic.
func declaredResource(node *graph.Node) string {
	key := node.ID.Key()
	for _, dep := range sortedNodes(node.Dependents) {
		for _, decl := range dep.Declarations {
			if types.NormalizeName(decl.Name) == key && decl.ResourcePath != "" {
				return decl.ResourcePath
			}
		}
	}
	return ""
}

func sortedNodes(nodes map[string]*graph.Node) []*graph.Node {
	keys := make([]string, 0, len(nodes))
	for key := range nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*graph.Node, len(keys))
	for i, key := range keys {
		out[i] = nodes[key]
	}
	return out
}
