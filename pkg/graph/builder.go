package graph

import (
	stderrors "errors"

	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/types"
)

// BuildOptions adjusts how the builder interprets declarations.
type BuildOptions struct {
	// GlobalOverrides pins a package name to a version range
	// regardless of what any manifest declares.
	GlobalOverrides map[string]string

	// RootOverrides pins a range only when declared by the root
	// workspace manifest's override table. Global overrides win.
	RootOverrides map[string]string
}

// Builder constructs dependency graphs from a root package and a
// declaration walker.
type Builder struct {
	logger  zerolog.Logger
	walker  Walker
	options BuildOptions
}

// NewBuilder returns a Builder reading declarations from walker.
func NewBuilder(walker Walker, options BuildOptions) *Builder {
	return &Builder{
		logger:  logging.GetLogger("graph"),
		walker:  walker,
		options: options,
	}
}

// Build constructs the graph rooted at rootName. The root is the
// workspace itself; its direct declarations are marked protected. A
// walker failure on the root is fatal, any other walker failure marks
// that node failed and building continues.
func (b *Builder) Build(rootName, rootVersion string) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*Node)}

	root := b.ensureNode(g, types.NewWorkspaceSource(rootName), rootVersion, 0)
	root.Protected = true
	g.Root = root

	stack := map[string]bool{root.ID.Key(): true}
	if err := b.walk(g, root, stack); err != nil {
		return nil, err
	}
	return g, nil
}

// Rewalk re-runs the declaration walk over the current node set. It is
// called once per resolution wave, after newly loaded metadata has
// been attached, so declarations discovered by that metadata grow the
// graph.
func (b *Builder) Rewalk(g *Graph) error {
	stack := map[string]bool{g.Root.ID.Key(): true}
	return b.walk(g, g.Root, stack)
}

func (b *Builder) walk(g *Graph, node *Node, stack map[string]bool) error {
	declarations, err := b.walker.Declarations(node.ID.Name, node.ID.Version)
	if err != nil {
		if stderrors.Is(err, ErrNotLoaded) {
			// A later wave fetches it; leave the node pending.
			return nil
		}
		if node == g.Root {
			return err
		}
		b.logger.Warn().Str("package", node.ID.Name).Err(err).
			Msg("failed to read declarations, marking node failed")
		node.State = StateFailed
		node.Err = err
		return nil
	}
	for i := range declarations {
		declarations[i].VersionRange = b.effectiveRange(declarations[i])
	}
	node.Declarations = declarations
	if node.State == StatePending && node.Loaded != nil {
		node.State = StateResolved
	}

	for _, decl := range declarations {
		key := types.NormalizeName(decl.Name)
		if stack[key] {
			// Cycle: the edge back up the recursion stack is
			// skipped, not an error.
			b.logger.Debug().Str("package", decl.Name).Str("requestedBy", node.ID.Name).
				Msg("cyclic declaration skipped")
			continue
		}

		child := b.ensureNode(g, decl.Source, "", node.Depth+1)
		if node == g.Root {
			child.Protected = true
		}
		link(node, child)

		stack[key] = true
		if err := b.walk(g, child, stack); err != nil {
			return err
		}
		delete(stack, key)
	}
	return nil
}

// effectiveRange applies override precedence: global overrides beat
// root overrides beat the declared range.
func (b *Builder) effectiveRange(decl types.DependencyDeclaration) string {
	key := types.NormalizeName(decl.Name)
	if rng, ok := b.options.GlobalOverrides[key]; ok {
		return rng
	}
	if rng, ok := b.options.RootOverrides[key]; ok {
		return rng
	}
	return decl.VersionRange
}

func (b *Builder) ensureNode(g *Graph, source types.Source, version string, depth int) *Node {
	key := types.NormalizeName(source.Name)
	if node, ok := g.Nodes[key]; ok {
		if depth < node.Depth {
			node.Depth = depth
		}
		return node
	}
	node := &Node{
		ID:           types.PackageIdentity{Name: source.Name, Version: version, Kind: source.Kind},
		Source:       source,
		State:        StatePending,
		Depth:        depth,
		Dependencies: make(map[string]*Node),
		Dependents:   make(map[string]*Node),
	}
	g.Nodes[key] = node
	return node
}

// link records the symmetric dependency/dependent edge pair.
func link(dependent, dependency *Node) {
	dependent.Dependencies[dependency.ID.Key()] = dependency
	dependency.Dependents[dependent.ID.Key()] = dependent
}
