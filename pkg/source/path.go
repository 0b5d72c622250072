package source

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/manifest"
	"github.com/lodge-sh/lodge/pkg/types"
)

// PathLoader loads packages from local directories. Every relative
// path resolves against one base directory, the workspace root,
// no matter which manifest declared it.
type PathLoader struct {
	fs      types.FS
	baseDir string
	logger  zerolog.Logger
}

// NewPathLoader returns a PathLoader resolving relative paths against
// baseDir.
func NewPathLoader(filesystem types.FS, baseDir string) *PathLoader {
	return &PathLoader{fs: filesystem, baseDir: baseDir, logger: logging.GetLogger("source.path")}
}

// Kind implements Loader.
func (l *PathLoader) Kind() types.SourceKind {
	return types.SourcePath
}

// Load implements Loader. Local directories have exactly one version,
// the one their manifest declares, so the range is checked upstream by
// the solver and ignored here.
func (l *PathLoader) Load(_ context.Context, src types.Source, _ string) (*types.LoadedPackage, error) {
	if src.Path == nil || src.Path.Path == "" {
		return nil, errors.Newf(errors.ErrSourceInvalid, "package %q has no path", src.Name)
	}

	root := src.Path.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(l.baseDir, root)
	}

	info, err := l.fs.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLoadFailed, "package %q at %s", src.Name, root)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrLoadFailed, "package %q path %s is not a directory", src.Name, root)
	}

	m, err := manifest.ReadFile(l.fs, root)
	if err != nil {
		return nil, err
	}
	if types.NormalizeName(m.Name) != types.NormalizeName(src.Name) {
		l.logger.Warn().
			Str("declared", src.Name).
			Str("manifest", m.Name).
			Str("path", root).
			Msg("manifest package name differs from declared dependency name")
	}

	return &types.LoadedPackage{
		PackageName:  m.Name,
		Version:      m.Version,
		ContentRoot:  root,
		Declarations: m.Declarations,
	}, nil
}

// Versions implements VersionLister with the single manifest version.
func (l *PathLoader) Versions(ctx context.Context, src types.Source) ([]string, error) {
	loaded, err := l.Load(ctx, src, "")
	if err != nil {
		return nil, err
	}
	if loaded.Version == "" {
		return nil, nil
	}
	return []string{loaded.Version}, nil
}
