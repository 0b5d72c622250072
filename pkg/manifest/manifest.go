// Package manifest reads lodge.toml package manifests. A manifest
// names the package, its version, and its dependency declarations;
// the graph builder consumes the declarations through its walker
// interface and never touches TOML itself.
package manifest

import (
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/types"
)

// FileName is the manifest file expected at a package's content root.
const FileName = "lodge.toml"

// Manifest is one parsed lodge.toml.
type Manifest struct {
	Name         string
	Version      string
	Declarations []types.DependencyDeclaration
}

type manifestTOML struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

type dependencyTable struct {
	Version  string `toml:"version"`
	Path     string `toml:"path"`
	Git      string `toml:"git"`
	Ref      string `toml:"ref"`
	Subpath  string `toml:"subpath"`
	Resource string `toml:"resource"`
}

// Parse decodes manifest bytes. Dependency entries are either a bare
// version range string (registry source) or a table selecting exactly
// one of version, path, or git.
func Parse(data []byte) (*Manifest, error) {
	var raw manifestTOML
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "parsing manifest")
	}
	if raw.Package.Name == "" {
		return nil, errors.New(errors.ErrManifestParse, "manifest has no package name")
	}

	m := &Manifest{
		Name:    raw.Package.Name,
		Version: raw.Package.Version,
	}

	names := make([]string, 0, len(raw.Dependencies))
	for name := range raw.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decl, err := parseDependency(m.Name, name, raw.Dependencies[name])
		if err != nil {
			return nil, err
		}
		m.Declarations = append(m.Declarations, decl)
	}
	return m, nil
}

// ReadFile reads and parses the manifest at a package content root.
func ReadFile(filesystem types.FS, contentRoot string) (*Manifest, error) {
	data, err := filesystem.ReadFile(filepath.Join(contentRoot, FileName))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "reading manifest in %s", contentRoot)
	}
	return Parse(data)
}

func parseDependency(requestedBy, name string, value any) (types.DependencyDeclaration, error) {
	decl := types.DependencyDeclaration{
		Name:        name,
		RequestedBy: requestedBy,
	}

	switch v := value.(type) {
	case string:
		decl.VersionRange = v
		decl.Source = types.NewRegistrySource(name)
		return decl, nil

	case map[string]any:
		table, err := decodeTable(name, v)
		if err != nil {
			return decl, err
		}
		decl.ResourcePath = table.Resource
		switch {
		case table.Path != "" && table.Git == "":
			decl.Source = types.NewPathSource(name, table.Path)
		case table.Git != "" && table.Path == "":
			decl.Source = types.NewGitSource(name, table.Git, table.Ref, table.Subpath)
		case table.Git != "" && table.Path != "":
			return decl, errors.Newf(errors.ErrManifestParse,
				"dependency %q declares both path and git sources", name)
		case table.Version == "":
			return decl, errors.Newf(errors.ErrManifestParse,
				"dependency %q declares no version, path, or git source", name)
		default:
			decl.Source = types.NewRegistrySource(name)
		}
		decl.VersionRange = table.Version
		return decl, nil

	default:
		return decl, errors.Newf(errors.ErrManifestParse,
			"dependency %q must be a version string or a table", name)
	}
}

// decodeTable round-trips the untyped table through TOML so field
// handling matches top-level decoding exactly.
func decodeTable(name string, value map[string]any) (dependencyTable, error) {
	var table dependencyTable
	raw, err := toml.Marshal(value)
	if err != nil {
		return table, errors.Wrapf(err, errors.ErrManifestParse, "dependency %q", name)
	}
	if err := toml.Unmarshal(raw, &table); err != nil {
		return table, errors.Wrapf(err, errors.ErrManifestParse, "dependency %q", name)
	}
	return table, nil
}
