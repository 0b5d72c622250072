package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FlowWriteRecord is the provenance unit: one write a flow performed
// for one source file. Deep and shallow merge records must carry
// KeysWritten; a merge record without keys is degraded and the
// uninstaller treats it as warn-only (see pkg/uninstall).
//
// On disk a record is either a bare string (whole-file ownership,
// replace semantics) or an object. The bare form round-trips through
// the Bare field.
type FlowWriteRecord struct {
	Source      string        `json:"source,omitempty"`
	Target      string        `json:"target"`
	Strategy    MergeStrategy `json:"-"`
	KeysWritten []string      `json:"keys,omitempty"`

	// Bare marks a record read from (and written back as) the bare
	// string form.
	Bare bool `json:"-"`
}

type flowWriteRecordJSON struct {
	Source   string   `json:"source,omitempty"`
	Target   string   `json:"target"`
	Strategy string   `json:"strategy,omitempty"`
	Keys     []string `json:"keys,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r FlowWriteRecord) MarshalJSON() ([]byte, error) {
	if r.Bare {
		return json.Marshal(r.Target)
	}
	return json.Marshal(flowWriteRecordJSON{
		Source:   r.Source,
		Target:   r.Target,
		Strategy: r.Strategy.String(),
		Keys:     r.KeysWritten,
	})
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the bare
// string form and the object form.
func (r *FlowWriteRecord) UnmarshalJSON(data []byte) error {
	var target string
	if err := json.Unmarshal(data, &target); err == nil {
		*r = FlowWriteRecord{Target: target, Strategy: MergeReplace, Bare: true}
		return nil
	}
	var obj flowWriteRecordJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	strategy, err := ParseMergeStrategy(obj.Strategy)
	if err != nil {
		return fmt.Errorf("provenance record for %q: %w", obj.Target, err)
	}
	*r = FlowWriteRecord{
		Source:      obj.Source,
		Target:      obj.Target,
		Strategy:    strategy,
		KeysWritten: obj.Keys,
	}
	return nil
}

// WorkspaceIndexEntry records everything one installed package wrote.
// Entries are replaced wholesale on re-install, never patched.
type WorkspaceIndexEntry struct {
	PackageName  string                       `json:"-"`
	DeclaredPath string                       `json:"path"`
	Version      string                       `json:"version,omitempty"`
	Files        map[string][]FlowWriteRecord `json:"files"`
}

// WorkspaceIndex is the durable provenance artifact for one workspace
// target directory, keyed by normalized package name.
type WorkspaceIndex struct {
	Packages map[string]*WorkspaceIndexEntry
}

// NewWorkspaceIndex returns an empty index.
func NewWorkspaceIndex() *WorkspaceIndex {
	return &WorkspaceIndex{Packages: make(map[string]*WorkspaceIndexEntry)}
}

// Get returns the entry for a package name, or nil.
func (idx *WorkspaceIndex) Get(name string) *WorkspaceIndexEntry {
	if idx == nil || idx.Packages == nil {
		return nil
	}
	return idx.Packages[NormalizeName(name)]
}

// Set replaces the entry for a package wholesale.
func (idx *WorkspaceIndex) Set(entry *WorkspaceIndexEntry) {
	if idx.Packages == nil {
		idx.Packages = make(map[string]*WorkspaceIndexEntry)
	}
	idx.Packages[NormalizeName(entry.PackageName)] = entry
}

// Delete removes the entry for a package.
func (idx *WorkspaceIndex) Delete(name string) {
	delete(idx.Packages, NormalizeName(name))
}

// PackageNames returns the installed package names in sorted order.
func (idx *WorkspaceIndex) PackageNames() []string {
	names := make([]string, 0, len(idx.Packages))
	for name := range idx.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PriorityRef names a package and its write priority in a conflict.
type PriorityRef struct {
	PackageName string
	Priority    int
}

// ConflictRecord reports one same-target write conflict resolved by
// priority during a flow-execution pass. It is surfaced to the caller
// for reporting and never persisted.
type ConflictRecord struct {
	TargetPath string
	Winner     PriorityRef
	Losers     []PriorityRef
}
