package types

import "fmt"

// InstallMode distinguishes a first install from a re-apply of an
// already-indexed package.
type InstallMode int

const (
	// ModeInstall is a fresh install of a package not in the index.
	ModeInstall InstallMode = iota

	// ModeApply re-synchronizes a package that already has an index
	// entry (its entry is replaced wholesale).
	ModeApply
)

// String implements fmt.Stringer.
func (m InstallMode) String() string {
	if m == ModeApply {
		return "apply"
	}
	return "install"
}

// InstallOptions carries the caller-facing switches for one run.
type InstallOptions struct {
	Force  bool
	DryRun bool
}

// InstallationContext is the per-package unit of work the planner hands
// to the flow engine. The planner creates it fully loaded; later phases
// (base detection, resource scoping, flow execution) refine it in the
// order the orchestrator sequences them. Its effects persist only via
// the workspace index.
type InstallationContext struct {
	Source    Source
	TargetDir string
	Mode      InstallMode
	Options   InstallOptions
	Platforms []Platform

	PackageName string
	Version     string
	ContentRoot string

	// ResolvedPackages caches loaded metadata by normalized name so
	// downstream phases never re-trigger a load. It always contains a
	// synthetic entry for this context's own package.
	ResolvedPackages map[string]*LoadedPackage

	// DetectedBase is the directory within ContentRoot that platform
	// conventions were detected against; empty means ContentRoot.
	DetectedBase string

	// MatchedPattern narrows which source files this install covers.
	// Empty means everything under the base.
	MatchedPattern string

	// Priority orders same-target writes across contexts in one run.
	// The root is 0; each transitive hop away subtracts one.
	Priority int

	Warnings []string
	Errors   []error
}

// Base returns the effective source base directory for flow matching.
func (c *InstallationContext) Base() string {
	if c.DetectedBase != "" {
		return c.DetectedBase
	}
	return c.ContentRoot
}

// Warnf appends a warning to the context.
func (c *InstallationContext) Warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
