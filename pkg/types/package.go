package types

import "strings"

// NormalizeName canonicalizes a package name for identity comparisons.
// Two identities with equal normalized names are the same package for
// conflict purposes even if their source kinds differ.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PackageIdentity uniquely keys a resolved package.
type PackageIdentity struct {
	Name    string
	Version string
	Kind    SourceKind
}

// Key returns the graph node key for this identity. Versions do not
// participate: one package name resolves to one node.
func (id PackageIdentity) Key() string {
	return NormalizeName(id.Name)
}

// String implements fmt.Stringer.
func (id PackageIdentity) String() string {
	if id.Version == "" {
		return id.Name
	}
	return id.Name + "@" + id.Version
}

// DependencyDeclaration is one dependency edge as declared by a
// manifest. Declarations are immutable once created; the graph builder
// only reads them.
type DependencyDeclaration struct {
	Name         string
	VersionRange string
	Source       Source
	RequestedBy  string

	// ResourcePath narrows the install to a sub-resource of the
	// package instead of its whole content root.
	ResourcePath string
}

// LoadedPackage is the shape a source loader hands back to the core.
// The core never performs network or git operations itself.
type LoadedPackage struct {
	PackageName    string
	Version        string
	ContentRoot    string
	Metadata       map[string]any
	PluginMetadata map[string]any
	SourceMetadata map[string]any

	// Declarations are the dependencies declared by the loaded
	// package's own manifest.
	Declarations []DependencyDeclaration
}
