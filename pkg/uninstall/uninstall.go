// Package uninstall removes one package's contribution from a
// workspace, driven entirely by the provenance index. It never
// re-derives flows: every removal comes from a recorded write, so an
// uninstall touches exactly what the install touched.
package uninstall

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/flows"
	"github.com/lodge-sh/lodge/pkg/format"
	"github.com/lodge-sh/lodge/pkg/index"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/merge"
	"github.com/lodge-sh/lodge/pkg/types"
)

// Result reports what one uninstall run changed on disk. Paths are
// relative to the workspace target directory.
type Result struct {
	PackageName string
	Removed     []string
	Updated     []string
	Warnings    []string
}

func (r *Result) warnf(msg string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(msg, args...))
}

// Uninstaller removes packages from a workspace target directory.
type Uninstaller struct {
	fs        types.FS
	store     index.Store
	platforms []types.Platform
	logger    zerolog.Logger
}

// New returns an Uninstaller. Platforms supply marker comment syntax
// for composite hosts and the directories preserved during pruning.
func New(filesystem types.FS, store index.Store, platforms []types.Platform) *Uninstaller {
	return &Uninstaller{
		fs:        filesystem,
		store:     store,
		platforms: platforms,
		logger:    logging.GetLogger("uninstall"),
	}
}

// Remove deletes every file mapping the index records for a package,
// prunes directories the removals emptied, and drops the package's
// index entry. Degraded records (merge writes with no key list) are
// warned about and left in place rather than risking another
// package's data.
func (u *Uninstaller) Remove(targetDir, packageName string) (*Result, error) {
	idx, err := u.store.Read(targetDir)
	if err != nil {
		return nil, err
	}

	entry := idx.Get(packageName)
	if entry == nil {
		return nil, errors.Newf(errors.ErrPackageMissing, "package %q is not installed", packageName)
	}

	result := &Result{PackageName: entry.PackageName}

	sources := make([]string, 0, len(entry.Files))
	for source := range entry.Files {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		for _, record := range entry.Files[source] {
			u.removeFileMapping(targetDir, record, entry.PackageName, result)
		}
	}

	u.pruneEmptyDirs(targetDir, result)

	idx.Delete(packageName)
	if err := u.store.Write(targetDir, idx); err != nil {
		return nil, err
	}

	u.logger.Info().
		Str("package", entry.PackageName).
		Int("removed", len(result.Removed)).
		Int("updated", len(result.Updated)).
		Msg("package uninstalled")
	return result, nil
}

// removeFileMapping undoes a single recorded write, dispatching on the
// record's shape. Failures degrade to warnings; an uninstall keeps
// going past individual files it cannot undo.
func (u *Uninstaller) removeFileMapping(targetDir string, record types.FlowWriteRecord,
	packageName string, result *Result) {
	abs := filepath.Join(targetDir, filepath.FromSlash(record.Target))

	switch {
	case record.Bare:
		u.removeWholeFile(abs, record.Target, result)

	case record.Strategy == types.MergeComposite:
		u.stripCompositeSection(abs, record.Target, packageName, result)

	case len(record.KeysWritten) > 0:
		u.unmergeKeys(abs, record, result)

	case record.Strategy == types.MergeDeep || record.Strategy == types.MergeShallow:
		// A merge write with no key list cannot be undone safely:
		// the file may hold other packages' data.
		result.warnf("cannot safely remove %s: no key provenance recorded, leaving file in place", record.Target)

	default:
		u.removeWholeFile(abs, record.Target, result)
	}
}

func (u *Uninstaller) removeWholeFile(abs, rel string, result *Result) {
	if _, err := u.fs.Stat(abs); err != nil {
		return
	}
	if err := u.fs.Remove(abs); err != nil {
		result.warnf("removing %s: %v", rel, err)
		return
	}
	result.Removed = append(result.Removed, rel)
}

// stripCompositeSection removes only this package's marker section.
// The host file is shared and permanent; it is never deleted here,
// even when stripping leaves it empty.
func (u *Uninstaller) stripCompositeSection(abs, rel, packageName string, result *Result) {
	existing, err := u.fs.ReadFile(abs)
	if err != nil {
		return
	}

	stripped, found := flows.StripSection(existing, u.markersFor(rel), packageName)
	if !found {
		result.warnf("no section for %s found in %s", packageName, rel)
		return
	}
	if err := u.fs.WriteFile(abs, stripped, 0o644); err != nil {
		result.warnf("updating %s: %v", rel, err)
		return
	}
	result.Updated = append(result.Updated, rel)
}

// unmergeKeys deletes the recorded key paths from a structured file,
// deleting the file when nothing enumerable remains and re-serializing
// it otherwise.
func (u *Uninstaller) unmergeKeys(abs string, record types.FlowWriteRecord, result *Result) {
	codec, ok := format.ForPath(record.Target)
	if !ok {
		result.warnf("cannot safely remove %s: unrecognized format", record.Target)
		return
	}

	existing, err := u.fs.ReadFile(abs)
	if err != nil {
		return
	}

	doc, err := codec.Decode(existing)
	if err != nil {
		result.warnf("cannot parse %s, leaving file in place: %v", record.Target, err)
		return
	}

	doc = merge.DeleteKeys(doc, record.KeysWritten)
	if merge.IsEmpty(doc) {
		if err := u.fs.Remove(abs); err != nil {
			result.warnf("removing %s: %v", record.Target, err)
			return
		}
		result.Removed = append(result.Removed, record.Target)
		return
	}

	out, err := codec.Encode(doc)
	if err != nil {
		result.warnf("re-serializing %s: %v", record.Target, err)
		return
	}
	if err := u.fs.WriteFile(abs, out, 0o644); err != nil {
		result.warnf("updating %s: %v", record.Target, err)
		return
	}
	result.Updated = append(result.Updated, record.Target)
}

// pruneEmptyDirs walks upward from every removed file, deleting
// directories the removals left empty. Platform roots and preserve
// listed directories survive, as does the target directory itself.
func (u *Uninstaller) pruneEmptyDirs(targetDir string, result *Result) {
	preserved := u.preservedDirs()

	candidates := map[string]bool{}
	for _, rel := range result.Removed {
		for dir := filepath.Dir(rel); dir != "." && dir != "/"; dir = filepath.Dir(dir) {
			candidates[filepath.ToSlash(dir)] = true
		}
	}

	// Deepest first so emptying a child can empty its parent.
	ordered := make([]string, 0, len(candidates))
	for dir := range candidates {
		ordered = append(ordered, dir)
	}
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := strings.Count(ordered[i], "/"), strings.Count(ordered[j], "/")
		if di != dj {
			return di > dj
		}
		return ordered[i] < ordered[j]
	})

	for _, rel := range ordered {
		if preserved[rel] {
			continue
		}
		abs := filepath.Join(targetDir, filepath.FromSlash(rel))
		entries, err := u.fs.ReadDir(abs)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := u.fs.Remove(abs); err == nil {
			u.logger.Debug().Str("dir", rel).Msg("pruned empty directory")
		}
	}
}

func (u *Uninstaller) preservedDirs() map[string]bool {
	preserved := map[string]bool{}
	for _, platform := range u.platforms {
		if platform.RootDir != "" {
			preserved[filepath.ToSlash(platform.RootDir)] = true
		}
		for _, dir := range platform.Preserve {
			preserved[filepath.ToSlash(dir)] = true
		}
	}
	return preserved
}

// markersFor picks the marker comment syntax for a composite target
// path by matching it to a platform root. Unmatched paths use the
// default hash leader.
func (u *Uninstaller) markersFor(rel string) flows.Markers {
	rel = filepath.ToSlash(rel)
	for _, platform := range u.platforms {
		if platform.CommentLeader == "" {
			continue
		}
		root := filepath.ToSlash(platform.RootDir)
		if root != "" && (rel == root || strings.HasPrefix(rel, root+"/")) {
			return flows.Markers{Leader: platform.CommentLeader, Trailer: platform.CommentTrailer}
		}
		if platform.RootFile != "" && filepath.Base(rel) == platform.RootFile {
			return flows.Markers{Leader: platform.CommentLeader, Trailer: platform.CommentTrailer}
		}
	}
	return flows.DefaultMarkers
}
