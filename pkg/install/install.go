// Package install orchestrates a full install run: manifest walk,
// iterative resolution waves, version solving, planning, flow
// execution, and provenance persistence. Loading fans out
// concurrently; every write to target files and the index is
// sequenced in the graph's installation order.
package install

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/events"
	"github.com/lodge-sh/lodge/pkg/flows"
	"github.com/lodge-sh/lodge/pkg/graph"
	"github.com/lodge-sh/lodge/pkg/index"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/manifest"
	"github.com/lodge-sh/lodge/pkg/planner"
	"github.com/lodge-sh/lodge/pkg/solver"
	"github.com/lodge-sh/lodge/pkg/source"
	"github.com/lodge-sh/lodge/pkg/types"
)

// Request describes one install invocation.
type Request struct {
	WorkspaceDir string
	TargetDir    string
	Platforms    []types.Platform
	Options      types.InstallOptions

	// Overrides pins version ranges regardless of what manifests
	// declare (global beats root-level).
	Overrides graph.BuildOptions

	// OnConflict, when set, is consulted for unresolvable version
	// conflicts; returning an error aborts the solve.
	OnConflict func(solver.Conflict) (string, error)
}

// Result is what one install run did (or, under dry-run, would do).
type Result struct {
	RunID               string
	Installed           []types.PackageIdentity
	Skipped             []planner.Skipped
	ResolutionConflicts []solver.Conflict
	WriteConflicts      []types.ConflictRecord
	Warnings            []string
	DryRun              bool
}

// Installer wires the resolution and flow engines together.
type Installer struct {
	fs      types.FS
	store   index.Store
	loaders *source.LoaderSet
	bus     *events.Bus
	logger  zerolog.Logger
}

// New returns an Installer.
func New(filesystem types.FS, store index.Store, loaders *source.LoaderSet, bus *events.Bus) *Installer {
	return &Installer{
		fs:      filesystem,
		store:   store,
		loaders: loaders,
		bus:     bus,
		logger:  logging.GetLogger("install"),
	}
}

// declWalker serves the graph builder from declarations gathered as
// loads complete. Unknown packages report ErrNotLoaded so the builder
// leaves them pending for the next wave.
type declWalker struct {
	mu    sync.Mutex
	decls map[string][]types.DependencyDeclaration
}

func (w *declWalker) Declarations(name, _ string) ([]types.DependencyDeclaration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if decls, ok := w.decls[types.NormalizeName(name)]; ok {
		return decls, nil
	}
	return nil, graph.ErrNotLoaded
}

func (w *declWalker) learn(name string, decls []types.DependencyDeclaration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.decls[types.NormalizeName(name)] = decls
}

// Run executes one install invocation end to end.
func (i *Installer) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{RunID: events.NewRunID(), DryRun: req.Options.DryRun}
	i.publish(events.InstallStarted, result.RunID, map[string]any{
		"workspace": req.WorkspaceDir,
		"target":    req.TargetDir,
	})

	root, err := manifest.ReadFile(i.fs, req.WorkspaceDir)
	if err != nil {
		// A root that cannot be loaded is the one load failure that
		// aborts the run.
		return nil, err
	}

	walker := &declWalker{decls: map[string][]types.DependencyDeclaration{
		types.NormalizeName(root.Name): root.Declarations,
	}}
	builder := graph.NewBuilder(walker, req.Overrides)

	g, err := builder.Build(root.Name, root.Version)
	if err != nil {
		return nil, err
	}
	g.SetLoaded(root.Name, &types.LoadedPackage{
		PackageName:  root.Name,
		Version:      root.Version,
		ContentRoot:  req.WorkspaceDir,
		Declarations: root.Declarations,
	})

	if err := i.resolveWaves(ctx, g, builder, walker, result); err != nil {
		return nil, err
	}

	if err := i.solveVersions(ctx, g, req, result); err != nil {
		return nil, err
	}

	g.Finalize()

	idx, err := i.store.Read(req.TargetDir)
	if err != nil {
		return nil, err
	}

	plan := planner.New(i.fs).CreatePlan(g, idx, req.TargetDir, req.Platforms, req.Options)
	result.Skipped = plan.Skipped

	writes, err := i.planWrites(plan, req.Platforms, result)
	if err != nil {
		return nil, err
	}

	surviving, conflicts := flows.ResolveConflicts(writes)
	result.WriteConflicts = conflicts
	for _, conflict := range conflicts {
		i.publish(events.InstallConflict, result.RunID, conflict)
	}

	for _, ictx := range plan.Contexts {
		result.Installed = append(result.Installed,
			types.PackageIdentity{Name: ictx.PackageName, Version: ictx.Version, Kind: ictx.Source.Kind})
	}

	if req.Options.DryRun {
		i.logger.Info().
			Int("packages", len(plan.Contexts)).
			Int("writes", len(surviving)).
			Msg("dry run, nothing written")
		i.publishCompleted(result)
		return result, nil
	}

	records, warnings, err := i.applyWrites(req.TargetDir, surviving)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return result, err
	}

	for _, ictx := range plan.Contexts {
		key := types.NormalizeName(ictx.PackageName)
		files := records[key]
		if files == nil {
			files = map[string][]types.FlowWriteRecord{}
		}
		idx.Set(&types.WorkspaceIndexEntry{
			PackageName:  ictx.PackageName,
			DeclaredPath: declaredPath(ictx.Source),
			Version:      ictx.Version,
			Files:        files,
		})
	}
	if err := i.store.Write(req.TargetDir, idx); err != nil {
		return result, err
	}

	i.publishCompleted(result)
	return result, nil
}

// resolveWaves loads pending nodes until the graph stabilizes. Loads
// within one wave fan out concurrently; the graph is only touched
// after the wave joins.
func (i *Installer) resolveWaves(ctx context.Context, g *graph.Graph, builder *graph.Builder,
	walker *declWalker, result *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending := g.Pending()
		if len(pending) == 0 {
			return nil
		}

		type outcome struct {
			name   string
			loaded *types.LoadedPackage
			err    error
		}
		outcomes := make([]outcome, len(pending))

		var wg sync.WaitGroup
		for n, name := range pending {
			node := g.Get(name)
			wg.Add(1)
			go func(n int, name string, node *graph.Node) {
				defer wg.Done()
				loaded, err := i.loaders.Load(ctx, node.Source, requestedRange(node))
				outcomes[n] = outcome{name: name, loaded: loaded, err: err}
			}(n, name, node)
		}
		wg.Wait()

		for _, out := range outcomes {
			if out.err != nil {
				// Sibling load failures degrade to warnings; only the
				// root aborts, and the root is never pending here.
				g.MarkFailed(out.name, out.err)
				result.Warnings = append(result.Warnings, out.err.Error())
				i.logger.Warn().Str("package", out.name).Err(out.err).Msg("load failed")
				continue
			}
			g.SetLoaded(out.name, out.loaded)
			walker.learn(out.name, out.loaded.Declarations)
		}

		if err := builder.Rewalk(g); err != nil {
			return err
		}
	}
}

// solveVersions gathers constraints and available versions, runs the
// solver, and pins each node to its resolved version.
func (i *Installer) solveVersions(ctx context.Context, g *graph.Graph, req Request, result *Result) error {
	sol := solver.New()

	for _, name := range sortedNodeKeys(g) {
		node := g.Nodes[name]
		for _, decl := range node.Declarations {
			if err := sol.AddConstraint(decl.Name, decl.VersionRange, decl.RequestedBy); err != nil {
				return err
			}
		}
		if node.Loaded != nil && node.Loaded.Version != "" {
			sol.AddAvailableVersion(node.ID.Name, node.Loaded.Version)
		}
	}

	i.listVersions(ctx, g, sol)

	solved, err := sol.Solve(solver.Options{Force: req.Options.Force, OnConflict: req.OnConflict})
	if err != nil {
		return err
	}
	result.ResolutionConflicts = solved.Conflicts

	for name, version := range solved.Resolved {
		if node := g.Get(name); node != nil {
			node.ID.Version = version
		}
	}

	i.publish(events.InstallResolved, result.RunID, map[string]any{
		"resolved":  solved.Resolved,
		"conflicts": len(solved.Conflicts),
	})
	return nil
}

// listVersions fans out version enumeration across nodes. Listing is
// best-effort discovery; failures are ignored and the solver works
// with whatever versions it has.
func (i *Installer) listVersions(ctx context.Context, g *graph.Graph, sol *solver.Solver) {
	names := sortedNodeKeys(g)

	versions := make([][]string, len(names))
	var wg sync.WaitGroup
	for n, name := range names {
		node := g.Nodes[name]
		if node.Source.Kind == types.SourceWorkspace {
			continue
		}
		wg.Add(1)
		go func(n int, node *graph.Node) {
			defer wg.Done()
			listed, err := i.loaders.Versions(ctx, node.Source)
			if err == nil {
				versions[n] = listed
			}
		}(n, node)
	}
	wg.Wait()

	for n, name := range names {
		for _, v := range versions[n] {
			sol.AddAvailableVersion(g.Nodes[name].ID.Name, v)
		}
	}
}

// planWrites runs flow matching for every context and platform in
// installation order.
func (i *Installer) planWrites(plan *planner.Plan, platforms []types.Platform, result *Result) ([]flows.Write, error) {
	engine := flows.NewEngine(i.fs)

	var writes []flows.Write
	for _, ictx := range plan.Contexts {
		for _, platform := range platforms {
			planned, err := engine.PlanWrites(ictx, platform)
			if err != nil {
				return nil, err
			}
			writes = append(writes, planned...)
		}
		result.Warnings = append(result.Warnings, ictx.Warnings...)
		ictx.Warnings = nil
	}
	return writes, nil
}

func (i *Installer) applyWrites(targetDir string, writes []flows.Write) (map[string]map[string][]types.FlowWriteRecord, []string, error) {
	engine := flows.NewEngine(i.fs)
	return engine.Apply(targetDir, writes)
}

func (i *Installer) publish(eventType events.Type, runID string, data any) {
	if i.bus != nil {
		i.bus.Publish(events.Event{Type: eventType, RunID: runID, Data: data})
	}
}

func (i *Installer) publishCompleted(result *Result) {
	i.publish(events.InstallCompleted, result.RunID, map[string]any{
		"installed": len(result.Installed),
		"skipped":   len(result.Skipped),
		"conflicts": len(result.WriteConflicts),
		"dryRun":    result.DryRun,
	})
}

// requestedRange finds the version range a node was requested with,
// taking the first declaration in sorted dependent order.
func requestedRange(node *graph.Node) string {
	key := node.ID.Key()
	for _, depKey := range sortedKeys(node.Dependents) {
		for _, decl := range node.Dependents[depKey].Declarations {
			if types.NormalizeName(decl.Name) == key && decl.VersionRange != "" {
				return decl.VersionRange
			}
		}
	}
	return ""
}

func declaredPath(src types.Source) string {
	switch src.Kind {
	case types.SourcePath:
		return src.Path.Path
	case types.SourceGit:
		return src.Git.URL
	case types.SourceRegistry, types.SourceWorkspace:
		return src.Name
	default:
		return src.Name
	}
}

func sortedNodeKeys(g *graph.Graph) []string {
	return sortedKeys(g.Nodes)
}

func sortedKeys(nodes map[string]*graph.Node) []string {
	keys := make([]string, 0, len(nodes))
	for key := range nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
