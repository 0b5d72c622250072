// Package source defines the boundary between the resolution core and
// the code that materializes package content. Registry and git
// transports live behind the Loader interface; the only loader the
// core owns outright is the local-path loader.
package source

import (
	"context"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/types"
)

// Loader materializes the content of packages from one source kind.
type Loader interface {
	Kind() types.SourceKind

	// Load fetches or locates the package content satisfying the
	// version range and returns its loaded metadata. The range may be
	// empty (any version).
	Load(ctx context.Context, src types.Source, versionRange string) (*types.LoadedPackage, error)
}

// VersionLister is implemented by loaders that can enumerate the
// versions available for a package without loading it.
type VersionLister interface {
	Versions(ctx context.Context, src types.Source) ([]string, error)
}

// LoaderSet dispatches loads on a source's kind.
type LoaderSet struct {
	loaders map[types.SourceKind]Loader
}

// NewLoaderSet returns a set over the given loaders. A later loader
// for the same kind replaces an earlier one.
func NewLoaderSet(loaders ...Loader) *LoaderSet {
	set := &LoaderSet{loaders: make(map[types.SourceKind]Loader, len(loaders))}
	for _, loader := range loaders {
		set.loaders[loader.Kind()] = loader
	}
	return set
}

// Load dispatches to the loader registered for the source's kind.
func (s *LoaderSet) Load(ctx context.Context, src types.Source, versionRange string) (*types.LoadedPackage, error) {
	switch src.Kind {
	case types.SourceRegistry, types.SourceGit, types.SourcePath:
		loader, ok := s.loaders[src.Kind]
		if !ok {
			return nil, errors.Newf(errors.ErrLoadFailed,
				"no %s loader configured for package %q", src.Kind, src.Name)
		}
		return loader.Load(ctx, src, versionRange)

	case types.SourceWorkspace:
		// The workspace root is read by the orchestrator directly; a
		// declaration pointing at it is a manifest bug.
		return nil, errors.Newf(errors.ErrSourceInvalid,
			"package %q declares the workspace as its source", src.Name)

	default:
		return nil, errors.Newf(errors.ErrSourceInvalid,
			"package %q has unknown source kind %s", src.Name, src.Kind)
	}
}

// Versions lists available versions for a source, or nil when its
// loader cannot enumerate them.
func (s *LoaderSet) Versions(ctx context.Context, src types.Source) ([]string, error) {
	loader, ok := s.loaders[src.Kind]
	if !ok {
		return nil, nil
	}
	lister, ok := loader.(VersionLister)
	if !ok {
		return nil, nil
	}
	return lister.Versions(ctx, src)
}
