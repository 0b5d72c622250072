// Package index persists the workspace provenance index: the durable
// record of which package wrote which target paths and keys. It is the
// sole source of truth the uninstaller consumes. Reads are defensive
// (a corrupt index never blocks new installs); writes are
// deterministic so the on-disk artifact is diff-friendly.
package index

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/types"
)

// FileName is the index file kept at the workspace target root.
const FileName = ".lodge-index.json"

// Store reads and writes the provenance index for a target directory.
type Store interface {
	Read(targetDir string) (*types.WorkspaceIndex, error)
	Write(targetDir string, idx *types.WorkspaceIndex) error
}

type fileStore struct {
	fs     types.FS
	logger zerolog.Logger
}

// NewStore returns a Store backed by the given filesystem.
func NewStore(filesystem types.FS) Store {
	return &fileStore{
		fs:     filesystem,
		logger: logging.GetLogger("index"),
	}
}

// Read loads the index. Malformed entries are dropped; a totally
// unparseable file is treated as an empty index. Read never fails on
// index content, only on I/O errors other than absence.
func (s *fileStore) Read(targetDir string) (*types.WorkspaceIndex, error) {
	path := filepath.Join(targetDir, FileName)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if isNotExist(err) {
			return types.NewWorkspaceIndex(), nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "reading index at %s", path)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn().Str("path", path).Err(err).
			Msg("index unreadable, treating as empty")
		return types.NewWorkspaceIndex(), nil
	}

	idx := types.NewWorkspaceIndex()
	for name, entryRaw := range raw {
		var entry types.WorkspaceIndexEntry
		if err := json.Unmarshal(entryRaw, &entry); err != nil {
			s.logger.Warn().Str("package", name).Err(err).
				Msg("dropping malformed index entry")
			continue
		}
		if entry.DeclaredPath == "" || entry.Files == nil {
			s.logger.Warn().Str("package", name).
				Msg("dropping incomplete index entry")
			continue
		}
		entry.PackageName = name
		idx.Set(&entry)
	}
	return idx, nil
}

// Write re-serializes the full index: package names sorted (map keys),
// file keys sorted (map keys), record lists deduplicated and sorted by
// target, key lists sorted. Unchanged input yields byte-identical
// output.
func (s *fileStore) Write(targetDir string, idx *types.WorkspaceIndex) error {
	out := make(map[string]*types.WorkspaceIndexEntry, len(idx.Packages))
	for name, entry := range idx.Packages {
		out[name] = normalizeEntry(entry)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "serializing index")
	}
	data = append(data, '\n')

	path := filepath.Join(targetDir, FileName)
	if err := s.fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "writing index at %s", path)
	}
	return nil
}

func normalizeEntry(entry *types.WorkspaceIndexEntry) *types.WorkspaceIndexEntry {
	normalized := &types.WorkspaceIndexEntry{
		PackageName:  entry.PackageName,
		DeclaredPath: entry.DeclaredPath,
		Version:      entry.Version,
		Files:        make(map[string][]types.FlowWriteRecord, len(entry.Files)),
	}
	for src, records := range entry.Files {
		normalized.Files[src] = normalizeRecords(records)
	}
	return normalized
}

func normalizeRecords(records []types.FlowWriteRecord) []types.FlowWriteRecord {
	out := make([]types.FlowWriteRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	sorted := append([]types.FlowWriteRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Target < sorted[j].Target
	})
	for _, rec := range sorted {
		if seen[rec.Target] {
			continue
		}
		seen[rec.Target] = true
		if len(rec.KeysWritten) > 0 {
			keys := append([]string(nil), rec.KeysWritten...)
			sort.Strings(keys)
			rec.KeysWritten = keys
		}
		out = append(out, rec)
	}
	return out
}

func isNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}
