package types

import "fmt"

// MergeStrategy selects how a flow writes content into its target.
type MergeStrategy int

const (
	// MergeReplace overwrites the target file verbatim.
	MergeReplace MergeStrategy = iota

	// MergeDeep recursively merges maps, replacing arrays and scalars
	// wholesale at any depth.
	MergeDeep

	// MergeShallow merges only top-level keys; nested structures are
	// replaced wholesale.
	MergeShallow

	// MergeComposite writes a marker-delimited section owned by the
	// contributing package into a shared host file.
	MergeComposite
)

// String implements fmt.Stringer.
func (m MergeStrategy) String() string {
	switch m {
	case MergeReplace:
		return "replace"
	case MergeDeep:
		return "deep"
	case MergeShallow:
		return "shallow"
	case MergeComposite:
		return "composite"
	default:
		return fmt.Sprintf("MergeStrategy(%d)", int(m))
	}
}

// ParseMergeStrategy converts a configuration string into a
// MergeStrategy. An empty string means replace.
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch s {
	case "", "replace":
		return MergeReplace, nil
	case "deep":
		return MergeDeep, nil
	case "shallow":
		return MergeShallow, nil
	case "composite":
		return MergeComposite, nil
	default:
		return MergeReplace, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// SwitchCase is one arm of a switch target pattern. Pattern is matched
// against the switch field's value: strings containing glob
// metacharacters glob-match, plain strings compare path-normalized, and
// non-string patterns compare by deep structural equality.
type SwitchCase struct {
	Pattern any
	Value   string
}

// SwitchExpr resolves a target path conditionally on a variable from
// the flow context (package name, platform id, detected root, ...).
// Cases are evaluated in declared order; first match wins. A missing
// default with no matching case is a configuration error.
type SwitchExpr struct {
	Field   string
	Cases   []SwitchCase
	Default *string
}

// TargetPattern is either a literal (possibly templated) path or a
// switch expression. Exactly one of the fields is set.
type TargetPattern struct {
	Literal string
	Switch  *SwitchExpr
}

// Flow maps a source file pattern to a target pattern plus merge
// strategy for one platform.
type Flow struct {
	Source   string
	Target   TargetPattern
	Strategy MergeStrategy
}

// Platform is one consuming convention installed content is projected
// into. The table of platforms is static configuration; the core never
// mutates it.
type Platform struct {
	ID      string
	RootDir string

	// RootFile, when set, is the composite host file (relative to
	// RootDir) that flows with an empty composite target write into.
	RootFile string

	// CommentLeader/CommentTrailer wrap section marker lines; the
	// default is "#" with no trailer.
	CommentLeader  string
	CommentTrailer string

	Flows []Flow

	// Preserve lists directories (relative to the workspace target)
	// that must survive empty-directory pruning after uninstall.
	Preserve []string
}
