package types

import "fmt"

// SourceKind identifies where a package comes from. It is a closed set;
// every dispatch site switches exhaustively over these values.
type SourceKind int

const (
	// SourceRegistry is a package fetched from the package registry.
	SourceRegistry SourceKind = iota

	// SourceGit is a package fetched from a git repository.
	SourceGit

	// SourcePath is a package read from a local directory.
	SourcePath

	// SourceWorkspace is the root workspace itself. It is never loaded
	// remotely and never appears as a transitive dependency.
	SourceWorkspace
)

// String implements fmt.Stringer.
func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourceGit:
		return "git"
	case SourcePath:
		return "path"
	case SourceWorkspace:
		return "workspace"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// GitSource points at a package inside a git repository.
type GitSource struct {
	URL     string
	Ref     string
	Subpath string
}

// PathSource points at a package on the local filesystem. Path is
// relative to the declaring manifest unless absolute.
type PathSource struct {
	Path string
}

// RegistrySource points at a package in the registry. An empty Registry
// means the default registry configured for the workspace.
type RegistrySource struct {
	Registry string
}

// Source is a tagged union over the package source kinds. Exactly the
// field matching Kind is set; the others are nil.
type Source struct {
	Kind     SourceKind
	Name     string
	Git      *GitSource
	Path     *PathSource
	Registry *RegistrySource
}

// NewRegistrySource returns a Source for name in the default registry.
func NewRegistrySource(name string) Source {
	return Source{Kind: SourceRegistry, Name: name, Registry: &RegistrySource{}}
}

// NewGitSource returns a Source for name at the given repository.
func NewGitSource(name, url, ref, subpath string) Source {
	return Source{Kind: SourceGit, Name: name, Git: &GitSource{URL: url, Ref: ref, Subpath: subpath}}
}

// NewPathSource returns a Source for name at a local directory.
func NewPathSource(name, path string) Source {
	return Source{Kind: SourcePath, Name: name, Path: &PathSource{Path: path}}
}

// NewWorkspaceSource returns the Source for the root workspace.
func NewWorkspaceSource(name string) Source {
	return Source{Kind: SourceWorkspace, Name: name}
}
